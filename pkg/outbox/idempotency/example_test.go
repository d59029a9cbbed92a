package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleGuard_Claim() {
	ctx := context.Background()
	guard, _ := NewGuard(newMapStore(), 7*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for i := 0; i < 2; i++ {
		first, _ := guard.Claim(ctx, "notification-worker", eventID)
		fmt.Println(first)
	}
	// Output:
	// true
	// false
}
