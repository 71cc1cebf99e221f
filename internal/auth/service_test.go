package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halcyon-wallet/gateway/internal/config"
	"github.com/halcyon-wallet/gateway/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := store.OpenSQLite(fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", t.Name()))
	store.AutoMigrate(db)
	store.EnsureOperator(db, "operator", "correct horse")
	return NewService(config.AuthConfig{
		JWTSecret: "test-secret",
		JWTTTL:    time.Hour,
	}, store.NewRepository(db))
}

func TestLoginAndParse(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Login(context.Background(), "operator", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Username != "operator" || claims.OperatorID == 0 {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "operator", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("bad password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "ghost", "correct horse"); err != ErrInvalidCredentials {
		t.Fatalf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "", ""); err != ErrInvalidCredentials {
		t.Fatalf("empty creds err = %v, want ErrInvalidCredentials", err)
	}
}

func TestParseRejectsForgedToken(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Parse("not-a-token"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestWSTicketIsOneTime(t *testing.T) {
	svc := newTestService(t)

	ticket, err := svc.IssueWSTicket()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !svc.RedeemWSTicket(ticket) {
		t.Fatal("first redeem failed")
	}
	if svc.RedeemWSTicket(ticket) {
		t.Fatal("ticket redeemed twice")
	}
	if svc.RedeemWSTicket("bogus") {
		t.Fatal("bogus ticket redeemed")
	}
}

func TestWSTicketConcurrentRedeemAdmitsOne(t *testing.T) {
	svc := newTestService(t)

	ticket, err := svc.IssueWSTicket()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.RedeemWSTicket(ticket) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := admitted.Load(); n != 1 {
		t.Fatalf("admitted = %d connects, want 1", n)
	}
}
