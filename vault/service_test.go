package vault

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"aethersecure/crypto"
	"aethersecure/models"
	"aethersecure/stego"
	"aethersecure/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []models.MessageSummary
}

func (n *recordingNotifier) NotifyNewMessage(summary models.MessageSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, summary)
}

func newTestService(t *testing.T, users ...string) (*Service, *recordingNotifier) {
	t.Helper()

	store, err := storage.OpenPath(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	for _, user := range users {
		_, err := store.CreateAccount(storage.Account{Username: user, PasswordHash: "hash"})
		require.NoError(t, err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	notifier := &recordingNotifier{}
	return NewService(store, notifier, logger), notifier
}

func testCover(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x + y), A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSendTextRoundTrip(t *testing.T) {
	svc, notifier := newTestService(t, "alice", "bob")

	summary, err := svc.SendText(Envelope{Sender: "alice", Recipient: "bob"}, "meet at noon", 7, "k3y")
	require.NoError(t, err)
	require.Equal(t, models.SchemeTextSuperCipher, summary.Scheme)
	require.Equal(t, "message.txt", summary.DisplayName)

	message, err := svc.Fetch(summary.ID, "bob")
	require.NoError(t, err)
	require.NotContains(t, string(message.Payload), "meet at noon")

	plaintext, err := crypto.SuperDecryptText(string(message.Payload), 7, "k3y")
	require.NoError(t, err)
	require.Equal(t, "meet at noon", plaintext)

	require.Len(t, notifier.messages, 1)
	require.Equal(t, summary.ID, notifier.messages[0].ID)
}

func TestSendStegoRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, "alice", "bob")

	summary, err := svc.SendStego(Envelope{Sender: "alice", Recipient: "bob"}, testCover(t, 32, 32), "holiday.png", "hidden note")
	require.NoError(t, err)
	require.Equal(t, models.SchemeSteganographic, summary.Scheme)
	require.Equal(t, "stego_holiday.png", summary.DisplayName)

	message, err := svc.Fetch(summary.ID, "bob")
	require.NoError(t, err)

	secret, err := stego.Extract(message.Payload)
	require.NoError(t, err)
	require.Equal(t, "hidden note", secret)
}

func TestSendStegoTooLargeStoresNothing(t *testing.T) {
	svc, notifier := newTestService(t, "alice", "bob")

	_, err := svc.SendStego(Envelope{Sender: "alice", Recipient: "bob"}, testCover(t, 4, 4), "tiny.png", "far too long for sixteen pixels")
	require.ErrorIs(t, err, stego.ErrPayloadTooLarge)

	inbox, err := svc.Inbox("bob")
	require.NoError(t, err)
	require.Empty(t, inbox)
	require.Empty(t, notifier.messages)
}

func TestSendFileRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, "alice", "bob")

	data := []byte("%PDF-1.7 quarterly numbers")
	summary, err := svc.SendFile(Envelope{Sender: "alice", Recipient: "bob"}, data, "reports/q3.pdf", "hunter2")
	require.NoError(t, err)
	require.Equal(t, models.SchemeAuthenticatedFile, summary.Scheme)
	require.Equal(t, "q3.pdf.enc", summary.DisplayName)

	message, err := svc.Fetch(summary.ID, "bob")
	require.NoError(t, err)
	require.Len(t, message.Payload, crypto.HeaderSize+len(data))

	plaintext, err := crypto.DecryptFile(message.Payload, "hunter2")
	require.NoError(t, err)
	require.Equal(t, data, plaintext)

	_, err = crypto.DecryptFile(message.Payload, "hunter3")
	require.Equal(t, crypto.ErrDecryptionFailed, err)
}

func TestSendRawStoresOpaquePayload(t *testing.T) {
	svc, _ := newTestService(t, "alice", "bob")

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	summary, err := svc.SendRaw(Envelope{Sender: "alice", Recipient: "bob"}, models.SchemeAuthenticatedFile, payload, "../../etc/blob.enc")
	require.NoError(t, err)
	require.Equal(t, "blob.enc", summary.DisplayName)

	message, err := svc.Fetch(summary.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, payload, message.Payload)

	_, err = svc.SendRaw(Envelope{Sender: "alice", Recipient: "bob"}, models.Scheme("plain"), payload, "")
	require.Error(t, err)
}

func TestSendRejectsUnknownRecipientAndBadKeys(t *testing.T) {
	svc, notifier := newTestService(t, "alice")

	_, err := svc.SendText(Envelope{Sender: "alice", Recipient: "ghost"}, "hi", 3, "k")
	require.ErrorIs(t, err, ErrUnknownRecipient)

	_, err = svc.SendText(Envelope{Sender: "alice", Recipient: "alice"}, "hi", 0, "k")
	require.ErrorIs(t, err, crypto.ErrInvalidKey)

	_, err = svc.SendText(Envelope{Sender: "alice", Recipient: "alice"}, "hi", 3, "")
	require.ErrorIs(t, err, crypto.ErrInvalidKey)

	require.Empty(t, notifier.messages)
}

func TestFetchOnlyByRecipient(t *testing.T) {
	svc, _ := newTestService(t, "alice", "bob", "carol")

	summary, err := svc.SendText(Envelope{Sender: "alice", Recipient: "bob"}, "for bob", 3, "k")
	require.NoError(t, err)

	_, errSender := svc.Fetch(summary.ID, "alice")
	_, errOther := svc.Fetch(summary.ID, "carol")
	_, errMissing := svc.Fetch(summary.ID+42, "bob")
	require.Equal(t, storage.ErrMessageUnavailable, errSender)
	require.Equal(t, errSender, errOther)
	require.Equal(t, errSender, errMissing)

	outbox, err := svc.Outbox("alice")
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	require.Equal(t, summary.ID, outbox[0].ID)

	require.Equal(t, storage.ErrMessageUnavailable, svc.MarkRead(summary.ID, "alice"))
	require.NoError(t, svc.MarkRead(summary.ID, "bob"))
	inbox, err := svc.Inbox("bob")
	require.NoError(t, err)
	require.True(t, inbox[0].IsRead)
}

func TestIdempotencyKeyDeduplicatesRetries(t *testing.T) {
	svc, _ := newTestService(t, "alice", "bob")

	env := Envelope{Sender: "alice", Recipient: "bob", IdempotencyKey: "upload-1"}
	first, err := svc.SendFile(env, []byte("same"), "a.txt", "pw")
	require.NoError(t, err)
	second, err := svc.SendFile(env, []byte("same"), "a.txt", "pw")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	inbox, err := svc.Inbox("bob")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
}

func TestIdempotencyKeyReusedForAnotherSendConflicts(t *testing.T) {
	svc, notifier := newTestService(t, "alice", "bob", "carol")

	env := Envelope{Sender: "alice", Recipient: "bob", IdempotencyKey: "k"}
	_, err := svc.SendFile(env, []byte("for bob"), "a.txt", "pw")
	require.NoError(t, err)

	_, err = svc.SendFile(env, []byte("changed"), "a.txt", "pw")
	require.ErrorIs(t, err, storage.ErrIdempotencyConflict)

	env.Recipient = "carol"
	_, err = svc.SendText(env, "hello carol", 3, "k")
	require.ErrorIs(t, err, storage.ErrIdempotencyConflict)

	inbox, err := svc.Inbox("carol")
	require.NoError(t, err)
	require.Empty(t, inbox)
	require.Len(t, notifier.messages, 1)
}
