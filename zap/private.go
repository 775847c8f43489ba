package zap

import (
	"bytes"
	"crypto/sha256"
	"strconv"

	"zapbox.lol/encryption"
	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/log"
	"zapbox.lol/p256k"
	"zapbox.lol/signer"
	"zapbox.lol/timestamp"
)

// PrivateKeypair derives the one-time key a private zap's outer request is
// signed with, so the sender can later decrypt their own zap. The secret is
// sha256 of hex(sec), hex(target id) and the decimal created_at, concatenated.
func PrivateKeypair(sec, targetID []byte, createdAt *timestamp.T) (s *p256k.Signer, err error) {
	h := sha256.New()
	h.Write([]byte(hex.Enc(sec)))
	h.Write([]byte(hex.Enc(targetID)))
	h.Write(strconv.AppendInt(nil, createdAt.I64(), 10))
	return p256k.FromSec(h.Sum(nil))
}

// EncryptNote encrypts the JSON of note from the holder of keys to pub.
func EncryptNote(keys signer.I, pub []byte, note *event.T) (enc string, err error) {
	var ck []byte
	if ck, err = encryption.ConversationKey(keys, pub); err != nil {
		return
	}
	return encryption.Encrypt(note.Serialize(), ck)
}

// DecryptNote reverses EncryptNote. A wrong key fails authentication and
// never yields a note.
func DecryptNote(keys signer.I, pub []byte, enc string) (note *event.T, err error) {
	var ck []byte
	if ck, err = encryption.ConversationKey(keys, pub); err != nil {
		return
	}
	var plain []byte
	if plain, err = encryption.Decrypt(enc, ck); err != nil {
		return
	}
	return event.Parse(plain)
}

// DecryptPrivateZap recovers the private note of a zap request. It first
// tries as the recipient, then as the sender through the one-time key. The
// note must be a valid kind 9733 pointing at the same e and p as the request.
func DecryptPrivateZap(sec []byte, req *event.T, target Target) (note *event.T) {
	anon := req.Tags.GetFirst(keyAnon)
	if anon == nil || anon.Len() < 2 {
		return
	}
	enc := string(anon.Value())
	ours, err := p256k.FromSec(sec)
	if err != nil {
		return
	}
	if note, err = DecryptNote(ours, req.Pubkey, enc); err != nil {
		var onetime *p256k.Signer
		if onetime, err = PrivateKeypair(sec, target.ID(), req.CreatedAt); err != nil {
			return nil
		}
		if note, err = DecryptNote(onetime, target.Pubkey(), enc); err != nil {
			log.T.F("private zap %s not for us", req.IDString())
			return nil
		}
	}
	if !note.Kind.Equal(kind.PrivateZapNote) {
		return nil
	}
	reqE, reqHasE := firstRef(req, keyE)
	noteE, noteHasE := firstRef(note, keyE)
	if reqHasE != noteHasE || !bytes.Equal(reqE, noteE) {
		return nil
	}
	reqP, ok := firstRef(req, keyP)
	if !ok {
		return nil
	}
	noteP, ok := firstRef(note, keyP)
	if !ok || !bytes.Equal(reqP, noteP) {
		return nil
	}
	if valid, _ := note.Verify(); !valid {
		return nil
	}
	return
}

// IsAnonymous is true for a zap request carrying an anon tag.
func IsAnonymous(ev *event.T) bool {
	return ev.Kind.Equal(kind.ZapRequest) && ev.Tags.ContainsKey(keyAnon)
}
