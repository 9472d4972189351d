package redisx

import (
	"fmt"
	"time"
)

const (
	// buyer id, client-supplied key
	KeyIdemOrderPlace = "idem:order:place:%s:%s"
)

const (
	TTLIdempotency = 24 * time.Hour
)

func IdemOrderPlaceKey(buyerID, key string) string {
	return fmt.Sprintf(KeyIdemOrderPlace, buyerID, key)
}
