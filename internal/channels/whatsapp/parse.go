// Package whatsapp normalizes Evolution gateway webhook payloads into the
// canonical bus.InboundMessage shape.
package whatsapp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/bus"
)

// envelope is the outer Evolution webhook shape:
//
//	{"event":"messages.upsert","instance":"sales","data":{...}}
type envelope struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

// messageUpsertData is the "data" body for a messages.upsert event, the
// only event type this hub routes to the agent pipeline; everything else
// is classified and short-circuited by the caller.
type messageUpsertData struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName string `json:"pushName"`
	Message  struct {
		Conversation     string `json:"conversation"`
		ExtendedTextMsg  *struct {
			Text          string `json:"text"`
			ContextInfo   *struct {
				QuotedMessage *struct {
					Conversation string `json:"conversation"`
				} `json:"quotedMessage"`
				StanzaID     string `json:"stanzaId"`
				Participant  string `json:"participant"`
			} `json:"contextInfo"`
		} `json:"extendedTextMessage"`
		ImageMessage *struct {
			URL     string `json:"url"`
			Mimetype string `json:"mimetype"`
			Caption string `json:"caption"`
		} `json:"imageMessage"`
		AudioMessage *struct {
			URL      string `json:"url"`
			Mimetype string `json:"mimetype"`
		} `json:"audioMessage"`
		ReactionMessage *struct {
			Text string `json:"text"`
		} `json:"reactionMessage"`
	} `json:"message"`
	MessageTimestamp int64 `json:"messageTimestamp"`
}

// Parse normalizes a single Evolution webhook call into an InboundMessage.
// instanceName is the path-resolved instance the webhook was addressed to,
// not necessarily the envelope's own "instance" field (the hub trusts the
// URL, not the body, for tenant resolution).
func Parse(instanceName string, raw []byte) (bus.InboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return bus.InboundMessage{}, fmt.Errorf("whatsapp: decode envelope: %w", err)
	}

	if env.Event != "messages.upsert" {
		return bus.InboundMessage{
			Instance:   instanceName,
			Channel:    "whatsapp",
			Kind:       bus.KindUnsupported,
			ReceivedAt: time.Now(),
			Metadata:   map[string]string{"event": env.Event},
		}, nil
	}

	var data messageUpsertData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return bus.InboundMessage{}, fmt.Errorf("whatsapp: decode message data: %w", err)
	}

	if data.Key.FromMe {
		return bus.InboundMessage{
			Instance:   instanceName,
			Channel:    "whatsapp",
			Kind:       bus.KindUnsupported,
			ReceivedAt: time.Now(),
			Metadata:   map[string]string{"reason": "from_me"},
		}, nil
	}

	chatID := data.Key.RemoteJID
	senderID := chatID
	isGroup := strings.HasSuffix(chatID, "@g.us")
	if isGroup && data.Message.ExtendedTextMsg != nil && data.Message.ExtendedTextMsg.ContextInfo != nil {
		senderID = data.Message.ExtendedTextMsg.ContextInfo.Participant
	}

	msg := bus.InboundMessage{
		Instance:   instanceName,
		Channel:    "whatsapp",
		MessageID:  data.Key.ID,
		SenderID:   senderID,
		SenderName: data.PushName,
		ChatID:     chatID,
		IsGroup:    isGroup,
		ReceivedAt: timestampOrNow(data.MessageTimestamp),
	}

	if isGroup {
		msg.Kind = bus.KindGroupEvent
	}

	switch {
	case data.Message.ReactionMessage != nil:
		msg.Kind = bus.KindReaction
		msg.Content = data.Message.ReactionMessage.Text
	case data.Message.AudioMessage != nil:
		msg.Kind = bus.KindAudio
		msg.Media = []bus.MediaAttachment{{
			URL:         data.Message.AudioMessage.URL,
			ContentType: data.Message.AudioMessage.Mimetype,
		}}
	case data.Message.ImageMessage != nil:
		msg.Kind = bus.KindMedia
		msg.Content = data.Message.ImageMessage.Caption
		msg.Media = []bus.MediaAttachment{{
			URL:         data.Message.ImageMessage.URL,
			ContentType: data.Message.ImageMessage.Mimetype,
			Caption:     data.Message.ImageMessage.Caption,
		}}
	case data.Message.ExtendedTextMsg != nil:
		msg.Content = data.Message.ExtendedTextMsg.Text
		if ctx := data.Message.ExtendedTextMsg.ContextInfo; ctx != nil && ctx.QuotedMessage != nil {
			msg.Kind = bus.KindQuoted
			msg.Quoted = &bus.QuotedMessage{
				MessageID: ctx.StanzaID,
				SenderID:  ctx.Participant,
				Content:   ctx.QuotedMessage.Conversation,
			}
		} else if msg.Kind == "" {
			msg.Kind = bus.KindText
		}
	case data.Message.Conversation != "":
		msg.Content = data.Message.Conversation
		if msg.Kind == "" {
			msg.Kind = bus.KindText
		}
	default:
		if msg.Kind == "" {
			msg.Kind = bus.KindUnsupported
		}
	}

	return msg, nil
}

func timestampOrNow(unixSeconds int64) time.Time {
	if unixSeconds <= 0 {
		return time.Now()
	}
	return time.Unix(unixSeconds, 0)
}
