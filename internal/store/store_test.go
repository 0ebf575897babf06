package store

import "testing"

func TestMessageKindValid(t *testing.T) {
	for _, k := range []MessageKind{MessageKindText, MessageKindOffer} {
		if !k.Valid() {
			t.Fatalf("%q should be valid", k)
		}
	}
	for _, k := range []MessageKind{"", "image", "Offer"} {
		if k.Valid() {
			t.Fatalf("%q should be invalid", k)
		}
	}
}
