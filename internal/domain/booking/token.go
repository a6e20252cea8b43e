package booking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var bookingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/xenking/arena-booking/bookings"))

// signQuote binds a venue to the instant its discounts were evaluated at.
func signQuote(secret []byte, venueID string, at time.Time) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(venueID))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(at.UnixNano(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyQuote(secret []byte, venueID string, at time.Time, token string) bool {
	if token == "" {
		return false
	}
	return hmac.Equal([]byte(signQuote(secret, venueID, at)), []byte(token))
}

// bookingID is random unless the client supplied an idempotency key, in
// which case retries of the same confirmation get the same ID.
func bookingID(req ConfirmRequest) string {
	if req.IdempotencyKey == "" {
		return uuid.New().String()
	}
	name := req.CustomerID + "\x00" + req.VenueID + "\x00" + req.IdempotencyKey
	return uuid.NewSHA1(bookingNamespace, []byte(name)).String()
}
