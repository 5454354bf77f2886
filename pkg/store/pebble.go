package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chatcore/pkg/logger"
	"chatcore/pkg/models"

	"github.com/cockroachdb/pebble"
)

var db *pebble.DB

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

var (
	// ErrNotFound is returned when a conversation, message or profile does
	// not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when a reply-to pointer does not
	// resolve within the same conversation.
	ErrInvalidReference = errors.New("invalid reply reference")
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Log.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

// Key layout:
//   conv:<convID>:msg:<unix_nano_padded>-<seq>   message log entry
//   conv:<convID>:byid:<msgID>                   message-id -> log key
//   conv:<convID>:meta                           conversation record
//   profile:<id>                                 profile record
func msgKey(convID string, ts int64, s uint64) string {
	return fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, ts, s)
}

func msgIndexKey(convID, msgID string) string {
	return "conv:" + convID + ":byid:" + msgID
}

// AppendMessage inserts msg at the tail of its conversation's ordered log.
// Missing ID and TS are assigned. A reply-to pointer must resolve to an
// existing message in the same conversation or ErrInvalidReference is
// returned before any write.
func AppendMessage(msg *models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if msg.TS == 0 {
		msg.TS = time.Now().UTC().UnixNano()
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: message id missing", models.ErrValidation)
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.ReplyTo != "" {
		if _, err := GetMessage(msg.Conversation, msg.ReplyTo); err != nil {
			return fmt.Errorf("%w: reply_to %s not in conversation %s", ErrInvalidReference, msg.ReplyTo, msg.Conversation)
		}
	}

	s := atomic.AddUint64(&seq, 1)
	key := msgKey(msg.Conversation, msg.TS, s)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Log.Error("append_message_failed", zap.String("conversation", msg.Conversation), zap.String("key", key), zap.Error(err))
		return err
	}
	// index by message id so reply-to and read updates can find the entry
	if err := db.Set([]byte(msgIndexKey(msg.Conversation, msg.ID)), []byte(key), pebble.Sync); err != nil {
		logger.Log.Error("append_message_index_failed", zap.String("msg_id", msg.ID), zap.Error(err))
		return err
	}
	logger.Log.Debug("message_appended", zap.String("conversation", msg.Conversation), zap.String("msg_id", msg.ID))
	return nil
}

// ListMessages returns all messages for a conversation in insertion order,
// oldest first. Each call uses a fresh iterator, so concurrent reads are
// stable. An optional limit keeps only the newest n entries.
func ListMessages(convID string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:" + convID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid stored message at %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(limit) > 0 && limit[0] >= 0 && limit[0] < len(out) {
		out = out[len(out)-limit[0]:]
	}
	return out, nil
}

// GetMessage looks up one message by id within a conversation.
func GetMessage(convID, msgID string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("pebble not opened; call store.Open first")
	}
	kv, closer, err := db.Get([]byte(msgIndexKey(convID, msgID)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, fmt.Errorf("message %s: %w", msgID, ErrNotFound)
		}
		return m, err
	}
	key := append([]byte(nil), kv...)
	_ = closer.Close()
	v, closer2, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, fmt.Errorf("message %s: %w", msgID, ErrNotFound)
		}
		return m, err
	}
	defer closer2.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message: %w", err)
	}
	return m, nil
}

// updateMessage rewrites an existing log entry in place.
func updateMessage(convID string, logKey []byte, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return db.Set(logKey, data, pebble.Sync)
}

// MarkRead adds viewerID to the read-by set of every message in the
// conversation it has not yet seen and clears the viewer's unread counter.
// It returns how many messages were newly marked.
func MarkRead(convID, viewerID string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:" + convID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	marked := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if !m.MarkReadBy(viewerID) {
			continue
		}
		key := append([]byte(nil), iter.Key()...)
		if err := updateMessage(convID, key, m); err != nil {
			return marked, err
		}
		marked++
	}
	if err := iter.Error(); err != nil {
		return marked, err
	}

	conv, err := GetConversation(convID)
	if err != nil {
		return marked, err
	}
	if conv.Unread[viewerID] != 0 {
		conv.Unread[viewerID] = 0
		if err := SaveConversation(conv); err != nil {
			return marked, err
		}
	}
	logger.Log.Debug("conversation_read", zap.String("conversation", convID), zap.String("viewer", viewerID), zap.Int("marked", marked))
	return marked, nil
}

// SaveConversation stores the conversation record under its reserved key.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	key := []byte("conv:" + c.ID + ":meta")
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Log.Error("save_conversation_failed", zap.String("conversation", c.ID), zap.Error(err))
		return err
	}
	return nil
}

// GetConversation returns the stored conversation for the given id.
func GetConversation(id string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte("conv:" + id + ":meta"))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return c, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return c, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid stored conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns all stored conversations.
func ListConversations() ([]models.Conversation, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !strings.HasSuffix(string(iter.Key()), ":meta") {
			continue
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// SaveProfile stores a profile record.
func SaveProfile(p models.Profile) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return db.Set([]byte("profile:"+p.ID), data, pebble.Sync)
}

// GetProfile returns the stored profile for the given id.
func GetProfile(id string) (models.Profile, error) {
	var p models.Profile
	if db == nil {
		return p, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte("profile:" + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return p, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return p, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &p); err != nil {
		return p, fmt.Errorf("invalid stored profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns all stored profiles.
func ListProfiles() ([]models.Profile, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("profile:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Profile
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var p models.Profile
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, iter.Error()
}

// ProfileMap returns all profiles keyed by id.
func ProfileMap() (map[string]models.Profile, error) {
	ps, err := ListProfiles()
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Profile, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// Used by the inspect tool.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	if len(pfx) == 0 {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(iter.Key()))
		}
		return out, iter.Error()
	}
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}
