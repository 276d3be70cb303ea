package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/paquetebot/paquetebot-backend/pkg/enums"
)

// EventKind distinguishes free text turns from structured button/list taps.
type EventKind string

const (
	EventKindFreeText         EventKind = "free_text"
	EventKindStructuredChoice EventKind = "structured_choice"
)

// Identity is a single-channel user identity. Exactly one of TelegramID or
// WhatsAppID is populated, matching the Channel field.
type Identity struct {
	Channel    enums.Channel
	TelegramID int64
	WhatsAppID string
}

// Key returns a stable string form usable as a lock or dedup key.
func (i Identity) Key() string {
	switch i.Channel {
	case enums.ChannelTelegram:
		return "telegram:" + strconv.FormatInt(i.TelegramID, 10)
	case enums.ChannelWhatsApp:
		return "whatsapp:" + i.WhatsAppID
	}
	return "unknown"
}

// IntakeEvent is one normalized inbound chat turn.
type IntakeEvent struct {
	Identity Identity
	Kind     EventKind
	Text     string
	ChoiceID string
}

// Choice identifiers understood by the core. Structured payloads are
// namespaced as "<prefix>:<argument>".
const (
	ChoiceStartOrder    = "start-order"
	ChoiceMyShipments   = "my-shipments"
	ChoiceMyDrafts      = "my-drafts"
	ChoiceChangePhone   = "change-phone"
	ChoiceCustomProduct = "custom-product"
	ChoiceAddItem       = "add-item"
	ChoiceConfirmOrder  = "confirm-order"
	ChoiceCancelOrder   = "cancel-order"

	ChoicePrefixCategory      = "category:"
	ChoicePrefixProduct       = "product:"
	ChoicePrefixRemoveItem    = "remove-item:"
	ChoicePrefixEditDraft     = "edit-draft:"
	ChoicePrefixFinalizeDraft = "finalize-draft:"

	ChoiceAdminFindOrder     = "admin:find-order"
	ChoiceAdminSetTracking   = "admin:set-tracking"
	ChoiceAdminMarkDelivered = "admin:mark-delivered"
	ChoiceAdminSetProcessing = "admin:set-processing"
	ChoiceAdminCancel        = "admin:cancel"
)

// IsAdminChoice reports whether a structured choice belongs to the admin
// workflow's namespace.
func IsAdminChoice(choiceID string) bool {
	return strings.HasPrefix(choiceID, "admin:")
}

// ChoiceArg splits a namespaced choice id and returns its argument.
func ChoiceArg(choiceID, prefix string) (string, bool) {
	if !strings.HasPrefix(choiceID, prefix) {
		return "", false
	}
	return choiceID[len(prefix):], true
}

// ChoiceUUIDArg parses the argument of a namespaced choice id as a UUID.
func ChoiceUUIDArg(choiceID, prefix string) (uuid.UUID, error) {
	arg, ok := ChoiceArg(choiceID, prefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("choice %q does not match prefix %q", choiceID, prefix)
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("choice %q carries invalid id: %w", choiceID, err)
	}
	return id, nil
}
