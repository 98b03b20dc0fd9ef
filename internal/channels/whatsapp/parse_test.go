package whatsapp

import (
	"testing"

	"github.com/namastexlabs/automagik-omni/internal/bus"
)

func TestParseTextMessage(t *testing.T) {
	raw := []byte(`{
		"event": "messages.upsert",
		"instance": "sales",
		"data": {
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false, "id": "ABC123"},
			"pushName": "Alice",
			"message": {"conversation": "hello there"},
			"messageTimestamp": 1700000000
		}
	}`)

	msg, err := Parse("sales", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != bus.KindText {
		t.Fatalf("expected text kind, got %s", msg.Kind)
	}
	if msg.Content != "hello there" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
	if msg.IsGroup {
		t.Fatal("direct message misclassified as group")
	}
	if msg.SenderName != "Alice" {
		t.Fatalf("unexpected sender name: %q", msg.SenderName)
	}
}

func TestParseGroupMessage(t *testing.T) {
	raw := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "120363000000000000@g.us", "fromMe": false, "id": "G1"},
			"message": {"conversation": "group ping"}
		}
	}`)

	msg, err := Parse("sales", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.IsGroup {
		t.Fatal("expected group classification")
	}
	if msg.Kind != bus.KindGroupEvent {
		t.Fatalf("expected group_event kind, got %s", msg.Kind)
	}
}

func TestParseFromMeIsUnsupported(t *testing.T) {
	raw := []byte(`{
		"event": "messages.upsert",
		"data": {"key": {"remoteJid": "1@s.whatsapp.net", "fromMe": true, "id": "X"}, "message": {"conversation": "echo"}}
	}`)

	msg, err := Parse("sales", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != bus.KindUnsupported {
		t.Fatalf("expected unsupported kind for own message, got %s", msg.Kind)
	}
}

func TestParseNonMessageEventIsUnsupported(t *testing.T) {
	raw := []byte(`{"event": "connection.update", "data": {}}`)

	msg, err := Parse("sales", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != bus.KindUnsupported {
		t.Fatalf("expected unsupported kind, got %s", msg.Kind)
	}
}

func TestParseQuotedMessage(t *testing.T) {
	raw := []byte(`{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "1@s.whatsapp.net", "fromMe": false, "id": "Q1"},
			"message": {
				"extendedTextMessage": {
					"text": "yes I agree",
					"contextInfo": {
						"stanzaId": "ORIG1",
						"participant": "1@s.whatsapp.net",
						"quotedMessage": {"conversation": "original text"}
					}
				}
			}
		}
	}`)

	msg, err := Parse("sales", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != bus.KindQuoted {
		t.Fatalf("expected quoted kind, got %s", msg.Kind)
	}
	if !msg.HasQuoted() || msg.Quoted.Content != "original text" {
		t.Fatalf("quoted metadata not captured: %+v", msg.Quoted)
	}
}
