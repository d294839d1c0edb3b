package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wallet-ledger/wallet_ledger/internal/config"
	"github.com/wallet-ledger/wallet_ledger/internal/logging"
)

func setupApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	cfg := config.Config{
		AppName:         "walletledger-test",
		DefaultCurrency: "USD",
		IdempotencyTTL:  time.Minute,
		TxTimeout:       time.Second,
	}
	if err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, cleanup
}

func request(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	return resp.StatusCode, decoded
}

func TestWalletLifecycleOverHTTP(t *testing.T) {
	app, cleanup := setupApp(t)
	defer cleanup()

	ownerID := uuid.NewString()

	status, created := request(t, app, fiber.MethodPost, "/api/v1/wallets",
		`{"owner_id":"`+ownerID+`","currency":"USD"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("create wallet: expected 201, got %d", status)
	}
	walletID, _ := created["id"].(string)
	if walletID == "" {
		t.Fatal("create wallet: missing id")
	}

	status, dep := request(t, app, fiber.MethodPost, "/api/v1/wallet/deposit",
		`{"owner_id":"`+ownerID+`","amount":"25.00","reference":"life-1"}`)
	if status != fiber.StatusOK {
		t.Fatalf("deposit: expected 200, got %d", status)
	}
	if dep["balance"] != "25.00" {
		t.Fatalf("deposit: expected balance 25.00, got %v", dep["balance"])
	}

	status, wd := request(t, app, fiber.MethodPost, "/api/v1/wallet/withdraw",
		`{"owner_id":"`+ownerID+`","amount":"10.00"}`)
	if status != fiber.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d", status)
	}
	if wd["balance"] != "15.00" {
		t.Fatalf("withdraw: expected balance 15.00, got %v", wd["balance"])
	}

	status, wresp := request(t, app, fiber.MethodGet, "/api/v1/wallets/"+walletID, "")
	if status != fiber.StatusOK {
		t.Fatalf("get wallet: expected 200, got %d", status)
	}
	if wresp["balance"] != "15.00" {
		t.Fatalf("get wallet: expected balance 15.00, got %v", wresp["balance"])
	}

	status, hist := request(t, app, fiber.MethodGet, "/api/v1/wallets/"+walletID+"/entries", "")
	if status != fiber.StatusOK {
		t.Fatalf("entries: expected 200, got %d", status)
	}
	entries, _ := hist["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}

	// Engine-level idempotency surfaces as a conflict over HTTP.
	status, _ = request(t, app, fiber.MethodPost, "/api/v1/wallet/deposit",
		`{"owner_id":"`+ownerID+`","amount":"25.00","reference":"life-1"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("replay: expected 409, got %d", status)
	}
}

func TestPing(t *testing.T) {
	app, cleanup := setupApp(t)
	defer cleanup()

	status, body := request(t, app, fiber.MethodGet, "/api/v1/ping", "")
	if status != fiber.StatusOK {
		t.Fatalf("ping: expected 200, got %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("ping: unexpected body %v", body)
	}
}
