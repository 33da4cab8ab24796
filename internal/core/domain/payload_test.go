package domain

import (
	"errors"
	"testing"
)

func TestAttribute_StringValue(t *testing.T) {
	p := Payload(`{"url":"https://example.com/hook","attempt":2}`)

	v, ok := p.Attribute("url")
	if !ok || v != "https://example.com/hook" {
		t.Errorf("expected url attribute, got %q ok=%v", v, ok)
	}
}

func TestAttribute_NonStringValueReserialized(t *testing.T) {
	p := Payload(`{"attempt":2,"tags":["a","b"]}`)

	v, ok := p.Attribute("attempt")
	if !ok || v != "2" {
		t.Errorf("expected re-serialized number, got %q ok=%v", v, ok)
	}
	v, ok = p.Attribute("tags")
	if !ok || v != `["a","b"]` {
		t.Errorf("expected re-serialized array, got %q ok=%v", v, ok)
	}
}

func TestAttribute_MissingKey(t *testing.T) {
	p := Payload(`{"url":"https://example.com"}`)
	if _, ok := p.Attribute("method"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestAttribute_NonObjectPayload(t *testing.T) {
	for _, raw := range []string{"", "not json", `"just a string"`, `[1,2,3]`} {
		if _, ok := Payload(raw).Attribute("url"); ok {
			t.Errorf("payload %q must not yield attributes", raw)
		}
	}
}

func TestRequireAttribute_TypedError(t *testing.T) {
	p := Payload(`{}`)

	_, err := p.RequireAttribute("url")
	if err == nil {
		t.Fatal("expected an error for the missing attribute")
	}
	var notFound *AttributeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected AttributeNotFoundError, got %T", err)
	}
	if notFound.Key != "url" {
		t.Errorf("expected key %q, got %q", "url", notFound.Key)
	}
}

func TestNotificationStatus_Valid(t *testing.T) {
	if !StatusSuccess.Valid() || !StatusFailure.Valid() {
		t.Error("known statuses must be valid")
	}
	if NotificationStatus("pending").Valid() {
		t.Error("unknown status must be invalid")
	}
}
