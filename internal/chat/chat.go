// Package chat defines the transport boundary between the bot core and the
// chat platform: the inbound event shape delivered by the webhook, the menu
// kinds the bot can attach to replies, and the outbound Sender/Downloader
// contracts. The core only ever talks to these interfaces; the concrete
// HTTP client lives next to them in this package.
package chat

import "context"

// DocumentRef identifies an attachment held by the chat platform.
type DocumentRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// Inbound is one user event routed to the bot. Exactly one of Text,
// Document, or Callback is meaningful per event; profile fields ride along
// so the bot can register users on first contact.
type Inbound struct {
	UpdateID  int64  `json:"update_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Text     string       `json:"text,omitempty"`
	Document *DocumentRef `json:"document,omitempty"`
	Callback string       `json:"callback,omitempty"` // data of a pressed inline button
}

// Menu is a keyboard attached to an outbound message. Implementations are
// ReplyMenu (persistent button grid) and InlineMenu (ephemeral, bound to one
// message).
type Menu interface {
	isMenu()
}

// ReplyMenu is a persistent grid of text buttons shown under the input box.
type ReplyMenu [][]string

func (ReplyMenu) isMenu() {}

// Button is one inline action; Data is echoed back as Inbound.Callback.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// InlineMenu is an ephemeral action menu bound to a specific message.
type InlineMenu [][]Button

func (InlineMenu) isMenu() {}

// Sender delivers outbound messages to a user. All methods are best-effort
// from the caller's point of view: a failed delivery is an error to count or
// log, never a reason to abort a batch.
type Sender interface {
	// SendText sends a text message, optionally with a menu.
	SendText(ctx context.Context, userID int64, text string, menu Menu) error

	// SendDocument uploads the file at path as a document with a caption.
	SendDocument(ctx context.Context, userID int64, path, caption string) error

	// EditLast rewrites the bot's last message to the user (used to resolve
	// inline menus in place).
	EditLast(ctx context.Context, userID int64, text string, menu Menu) error
}

// Downloader fetches an attachment from the chat platform into a local file.
type Downloader interface {
	Download(ctx context.Context, fileID, destPath string) error
}
