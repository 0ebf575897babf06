package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/loopmarked/dashboard/internal/backend"
	"github.com/loopmarked/dashboard/internal/store"
	"github.com/loopmarked/dashboard/internal/utils"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run checks a running backend end to end: the seller subscribes, the buyer
// posts, and the insert must arrive on the seller's feed.
func run() error {
	addr := flag.String("addr", "http://localhost:8080", "backend base URL")
	buyer := flag.String("buyer", "smoke-buyer", "buyer user id")
	seller := flag.String("seller", "smoke-seller", "seller user id")
	listing := flag.String("listing", "smoke-listing", "listing id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	buyerClient, err := client(ctx, *addr, *buyer)
	if err != nil {
		return err
	}
	sellerClient, err := client(ctx, *addr, *seller)
	if err != nil {
		return err
	}

	conv, err := buyerClient.CreateConversation(ctx, *listing, *buyer, *seller)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	fmt.Printf("Conversation: id=%s listing=%s\n", conv.ID, conv.ListingID)

	sub, err := sellerClient.Subscribe(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	msg := &store.Message{
		ConversationID: conv.ID,
		SenderID:       *buyer,
		Content:        *text,
		Kind:           store.MessageKindText,
		ClientRef:      utils.NewID(),
	}
	if err := buyerClient.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Printf("Sent: id=%d ref=%s\n", msg.ID, msg.ClientRef)

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return fmt.Errorf("feed closed before the insert arrived")
			}
			fmt.Printf("Insert: id=%d sender=%s text=%q at=%s\n", evt.ID, evt.SenderID, evt.Content, evt.CreatedAt.Format(time.RFC3339))
			if evt.ClientRef == msg.ClientRef {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for insert: %w", ctx.Err())
		}
	}
}

func client(ctx context.Context, addr, userID string) (*backend.Remote, error) {
	token, err := backend.RequestDevToken(ctx, addr, userID, "")
	if err != nil {
		return nil, fmt.Errorf("token for %s: %w", userID, err)
	}
	return backend.NewRemote(addr, userID, token)
}
