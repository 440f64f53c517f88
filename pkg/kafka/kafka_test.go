package kafka

import (
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	msg, err := encode(Event{Key: "b1", Value: map[string]int{"terms": 9}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "b1" || string(msg.Value) != `{"terms":9}` {
		t.Fatalf("message = %q/%q", msg.Key, msg.Value)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != contentTypeHeader {
		t.Fatalf("headers = %+v", msg.Headers)
	}
}

func TestEncodeFailureIsMarked(t *testing.T) {
	_, err := encode(Event{Key: "bad", Value: make(chan int)})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("err = %v; want ErrEncode", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Type string `json:"type"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"type":"search"}`))
	if err != nil || got.Type != "search" {
		t.Fatalf("DecodeJSON = %+v, %v", got, err)
	}
	if _, err := DecodeJSON[payload]([]byte(`{`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
