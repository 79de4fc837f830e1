package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"homebase/api/internal/inbox"
	"homebase/api/internal/search"
	"homebase/api/internal/store"
	"homebase/api/internal/util"
)

const smsCreditCost = 1

func (s *Service) ListInboxThreads(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "inbox"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	threads, err := s.store.ListThreads(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(threads))
	for _, thread := range threads {
		items = append(items, threadPayload(thread))
	}
	return items, nil
}

// ListThreadMessages returns the thread's messages oldest first and clears
// its unread counter.
func (s *Service) ListThreadMessages(ctx context.Context, session Session, threadID string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "inbox"); err != nil {
		return nil, err
	}
	exists, err := s.store.ThreadExists(ctx, session.UserID, threadID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, sql.ErrNoRows
	}

	thread, err := s.store.GetThread(ctx, session.UserID, threadID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, session.UserID, threadID, 200)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkThreadRead(ctx, session.UserID, threadID); err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		payload := messagePayload(message)
		attachments, err := s.store.ListAttachments(ctx, message.ID)
		if err != nil {
			return nil, err
		}
		if len(attachments) > 0 {
			attItems := make([]map[string]any, 0, len(attachments))
			for _, att := range attachments {
				attItems = append(attItems, map[string]any{
					"id":          att.ID,
					"fileName":    att.FileName,
					"contentType": att.ContentType,
					"size":        att.Size,
				})
			}
			payload["attachments"] = attItems
		}
		items = append(items, payload)
	}

	return map[string]any{
		"thread":   threadPayload(thread),
		"messages": items,
	}, nil
}

func (s *Service) MarkInboxThreadRead(ctx context.Context, session Session, threadID string) error {
	if err := s.requireService(ctx, session.UserID, "inbox"); err != nil {
		return err
	}
	exists, err := s.store.ThreadExists(ctx, session.UserID, threadID)
	if err != nil {
		return err
	}
	if !exists {
		return sql.ErrNoRows
	}
	return s.store.MarkThreadRead(ctx, session.UserID, threadID)
}

// SendThreadMessage sends an outbound reply on the thread's channel. SMS
// replies debit the credit ledger before the provider call; a provider
// failure refunds the debit.
func (s *Service) SendThreadMessage(ctx context.Context, session Session, threadID, body string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "inbox"); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(body)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}

	thread, err := s.store.GetThread(ctx, session.UserID, threadID)
	if err != nil {
		return nil, err
	}

	message := store.InboxMessage{
		ID:        util.NewID("msg"),
		ThreadID:  thread.ID,
		OwnerID:   session.UserID,
		Direction: "outbound",
		Channel:   thread.Channel,
		Peer:      thread.Peer,
		Subject:   thread.Subject,
		Body:      text,
		Status:    "queued",
		CreatedAt: time.Now().UTC(),
	}

	switch thread.Channel {
	case inbox.ChannelSMS:
		if s.sms == nil || !s.sms.IsConfigured() {
			return nil, domainError(http.StatusServiceUnavailable, "SMS_UNAVAILABLE", "SMS sending is not configured", nil)
		}
		if err := s.store.DebitCredits(ctx, session.UserID, smsCreditCost, "sms_outbound", message.ID); err != nil {
			if errors.Is(err, store.ErrInsufficientCredits) {
				return nil, domainError(http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "Not enough credits to send SMS", nil)
			}
			return nil, err
		}
		sent, err := s.sms.SendSMS(ctx, thread.Peer, text)
		if err != nil {
			if refundErr := s.store.GrantCredits(ctx, session.UserID, smsCreditCost, "sms_refund", message.ID); refundErr != nil {
				log.Printf(`{"event":"sms_refund_failed","message_id":"%s","error":"%s"}`, message.ID, refundErr)
			}
			return nil, domainError(http.StatusBadGateway, "PROVIDER_ERROR", "SMS provider rejected the message", nil)
		}
		message.ProviderSID = sent.SID
		message.Status = firstNonBlank(sent.Status, "sent")
	case inbox.ChannelEmail:
		if !s.SMTPConfigured() {
			return nil, domainError(http.StatusServiceUnavailable, "EMAIL_UNAVAILABLE", "Email sending is not configured", nil)
		}
		subject := firstNonBlank(thread.Subject, "Message from "+session.UserName)
		if err := s.email.SendEmail([]string{thread.Peer}, subject, text); err != nil {
			return nil, domainError(http.StatusBadGateway, "PROVIDER_ERROR", "Email delivery failed", nil)
		}
		message.Status = "sent"
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unsupported thread channel", map[string]any{"channel": thread.Channel})
	}

	if _, err := s.store.InsertMessage(ctx, message); err != nil {
		return nil, err
	}
	if _, err := s.store.UpsertThread(ctx, store.InboxThread{
		ID:          thread.ID,
		OwnerID:     thread.OwnerID,
		ThreadKey:   thread.ThreadKey,
		Channel:     thread.Channel,
		Peer:        thread.Peer,
		Subject:     thread.Subject,
		LastPreview: preview(text),
		UnreadCount: 0,
	}); err != nil {
		return nil, err
	}
	s.indexMessage(message)

	return messagePayload(message), nil
}

// StartThread opens an outbound conversation with a new peer.
func (s *Service) StartThread(ctx context.Context, session Session, channel, peer, subject, body string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "inbox"); err != nil {
		return nil, err
	}
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "peer is required", nil)
	}
	if channel != inbox.ChannelSMS && channel != inbox.ChannelEmail {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "channel must be sms or email", nil)
	}

	if channel == inbox.ChannelSMS {
		peer = inbox.NormalizePhone(peer)
	} else {
		peer = inbox.NormalizeEmail(peer)
	}

	thread, err := s.store.UpsertThread(ctx, store.InboxThread{
		ID:          util.NewID("thr"),
		OwnerID:     session.UserID,
		ThreadKey:   inbox.ThreadKey(channel, peer, subject),
		Channel:     channel,
		Peer:        peer,
		Subject:     strings.TrimSpace(subject),
		LastPreview: preview(body),
		UnreadCount: 0,
	})
	if err != nil {
		return nil, err
	}

	return s.SendThreadMessage(ctx, session, thread.ID, body)
}

// GetAttachment streams attachment content from object storage.
func (s *Service) GetAttachment(ctx context.Context, session Session, threadID, messageID, attachmentID string) (store.InboxAttachment, []byte, error) {
	if err := s.requireService(ctx, session.UserID, "inbox"); err != nil {
		return store.InboxAttachment{}, nil, err
	}
	exists, err := s.store.ThreadExists(ctx, session.UserID, threadID)
	if err != nil {
		return store.InboxAttachment{}, nil, err
	}
	if !exists {
		return store.InboxAttachment{}, nil, sql.ErrNoRows
	}

	attachments, err := s.store.ListAttachments(ctx, messageID)
	if err != nil {
		return store.InboxAttachment{}, nil, err
	}
	for _, att := range attachments {
		if att.ID != attachmentID {
			continue
		}
		reader, err := s.media.Get(ctx, att.ObjectKey)
		if err != nil {
			return store.InboxAttachment{}, nil, err
		}
		defer reader.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(reader); err != nil {
			return store.InboxAttachment{}, nil, err
		}
		return att, buf.Bytes(), nil
	}
	return store.InboxAttachment{}, nil, sql.ErrNoRows
}

// InboundAttachment is one attachment from the mail provider's webhook.
type InboundAttachment struct {
	FileName    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// RecordInboundSMS ingests a provider SMS webhook for the tenant. Retried
// deliveries dedupe on the provider SID and leave the thread untouched.
func (s *Service) RecordInboundSMS(ctx context.Context, profile store.BusinessProfile, from, body, messageSID string) error {
	peer := inbox.NormalizePhone(from)
	threadKey := inbox.ThreadKey(inbox.ChannelSMS, peer, "")

	message := store.InboxMessage{
		ID:          util.NewID("msg"),
		OwnerID:     profile.OwnerID,
		Direction:   "inbound",
		Channel:     inbox.ChannelSMS,
		Peer:        peer,
		Body:        body,
		ProviderSID: messageSID,
		Status:      "received",
	}
	return s.recordInbound(ctx, profile, threadKey, "", message, nil)
}

// RecordInboundEmail ingests the mail provider's inbound webhook.
func (s *Service) RecordInboundEmail(ctx context.Context, profile store.BusinessProfile, from, subject, body, providerID string, attachments []InboundAttachment) error {
	peer := inbox.NormalizeEmail(from)
	threadKey := inbox.ThreadKey(inbox.ChannelEmail, peer, subject)

	message := store.InboxMessage{
		ID:          util.NewID("msg"),
		OwnerID:     profile.OwnerID,
		Direction:   "inbound",
		Channel:     inbox.ChannelEmail,
		Peer:        peer,
		Subject:     strings.TrimSpace(subject),
		Body:        body,
		ProviderSID: providerID,
		Status:      "received",
	}
	return s.recordInbound(ctx, profile, threadKey, subject, message, attachments)
}

func (s *Service) recordInbound(ctx context.Context, profile store.BusinessProfile, threadKey, subject string, message store.InboxMessage, attachments []InboundAttachment) error {
	// Ensure the thread row exists without touching its counters; the message
	// insert decides below whether this delivery is new.
	thread, err := s.store.UpsertThread(ctx, store.InboxThread{
		ID:          util.NewID("thr"),
		OwnerID:     profile.OwnerID,
		ThreadKey:   threadKey,
		Channel:     message.Channel,
		Peer:        message.Peer,
		Subject:     strings.TrimSpace(subject),
		LastPreview: preview(message.Body),
	})
	if err != nil {
		return err
	}

	message.ThreadID = thread.ID
	inserted, err := s.store.InsertMessage(ctx, message)
	if err != nil {
		return err
	}
	if !inserted {
		// Webhook retry; the first delivery already recorded everything.
		return nil
	}

	// The message is new, so count it against the thread now. A retried
	// delivery never reaches this bump.
	if _, err := s.store.UpsertThread(ctx, store.InboxThread{
		ID:          util.NewID("thr"),
		OwnerID:     profile.OwnerID,
		ThreadKey:   threadKey,
		Channel:     message.Channel,
		Peer:        message.Peer,
		Subject:     strings.TrimSpace(subject),
		LastPreview: preview(message.Body),
		UnreadCount: 1,
	}); err != nil {
		return err
	}

	for _, att := range attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			log.Printf(`{"event":"attachment_decode_failed","message_id":"%s","file":"%s"}`, message.ID, att.FileName)
			continue
		}
		objectKey := "attachments/" + message.ID + "/" + util.NewID("att")
		if err := s.media.Put(ctx, objectKey, bytes.NewReader(content), int64(len(content)), att.ContentType); err != nil {
			log.Printf(`{"event":"attachment_store_failed","message_id":"%s","error":"%s"}`, message.ID, err)
			continue
		}
		if err := s.store.InsertAttachment(ctx, store.InboxAttachment{
			ID:          util.NewID("att"),
			MessageID:   message.ID,
			FileName:    att.FileName,
			ContentType: att.ContentType,
			ObjectKey:   objectKey,
			Size:        int64(len(content)),
		}); err != nil {
			log.Printf(`{"event":"attachment_record_failed","message_id":"%s","error":"%s"}`, message.ID, err)
		}
	}

	s.indexMessage(message)
	return nil
}

// RecordDeliveryStatus applies a provider status callback to the matching
// outbound message. Unknown SIDs are ignored; providers retry callbacks.
func (s *Service) RecordDeliveryStatus(ctx context.Context, profile store.BusinessProfile, providerSID, status string) error {
	if providerSID == "" || status == "" {
		return nil
	}
	err := s.store.UpdateMessageStatus(ctx, profile.OwnerID, providerSID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (s *Service) indexMessage(message store.InboxMessage) {
	if s.search == nil {
		return
	}
	s.search.IndexMessage(search.MessageRecord{
		ID:       message.ID,
		OwnerID:  message.OwnerID,
		ThreadID: message.ThreadID,
		Peer:     message.Peer,
		Channel:  message.Channel,
		Body:     message.Body,
	})
}

func preview(body string) string {
	text := strings.Join(strings.Fields(body), " ")
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}

func threadPayload(t store.InboxThread) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"channel":       t.Channel,
		"peer":          t.Peer,
		"peerName":      t.PeerName,
		"subject":       t.Subject,
		"lastPreview":   t.LastPreview,
		"unreadCount":   t.UnreadCount,
		"lastMessageAt": t.LastMessageAt.UTC().Format(time.RFC3339),
	}
}

func messagePayload(m store.InboxMessage) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"threadId":  m.ThreadID,
		"direction": m.Direction,
		"channel":   m.Channel,
		"peer":      m.Peer,
		"subject":   m.Subject,
		"body":      m.Body,
		"status":    m.Status,
		"createdAt": m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
