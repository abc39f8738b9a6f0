package providers

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/ormasoftchile/clirun/pkg/schema"
)

func TestCryptoProvider_EncryptDecrypt(t *testing.T) {
	p := &CryptoProvider{Path: "cipher", Executor: &helperExecutor{}, Timeout: 10 * time.Second}

	enc, err := p.Execute(context.Background(), &Request{Name: "enc", Arguments: schema.NewArguments(
		"operation", "encrypt", "key", "k", "data", "NAME=홍길동\nCARD=4111")})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	cipher := enc.Response.Parsed["result"]
	if cipher != base64.StdEncoding.EncodeToString([]byte("NAME=홍길동\nCARD=4111")) {
		t.Errorf("cipher = %q", cipher)
	}
	if enc.Response.Parsed["operation"] != "encrypt" {
		t.Errorf("operation = %q", enc.Response.Parsed["operation"])
	}

	dec, err := p.Execute(context.Background(), &Request{Name: "dec", Arguments: schema.NewArguments(
		"operation", "decrypt", "key", "k", "data", cipher)})
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if dec.Response.Parsed["name"] != "홍길동" || dec.Response.Parsed["card"] != "4111" {
		t.Errorf("decrypted parsed = %v", dec.Response.Parsed)
	}
}

func TestCryptoProvider_DecryptedResultKeyWins(t *testing.T) {
	rec := &recordingExecutor{result: &CommandResult{
		Stdout: []byte("RESULT=0000\nMSG=approved\n"),
		Stderr: []byte("warn: legacy key\n"),
	}}
	p := &CryptoProvider{Path: "cipher", Executor: rec, Timeout: time.Second}
	res, err := p.Execute(context.Background(), &Request{Name: "dec", Arguments: schema.NewArguments(
		"operation", "decrypt", "key", "k", "data", "Zm9v")})
	if err != nil {
		t.Fatal(err)
	}
	parsed := res.Response.Parsed
	if parsed["result"] != "0000" {
		t.Errorf("result = %q, want the decrypted value", parsed["result"])
	}
	if parsed["cipher_result"] != "RESULT=0000\nMSG=approved" {
		t.Errorf("cipher_result = %q", parsed["cipher_result"])
	}
	if res.Response.Stderr != "warn: legacy key\n" {
		t.Errorf("stderr = %q", res.Response.Stderr)
	}
}

func TestCryptoProvider_DelayMarker(t *testing.T) {
	var slept []time.Duration
	p := &CryptoProvider{
		Path:        "cipher",
		Executor:    &helperExecutor{},
		Timeout:     10 * time.Second,
		DelayMarker: "Q0FS",
		Delay:       3 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	if _, err := p.Execute(context.Background(), &Request{Arguments: schema.NewArguments(
		"operation", "encrypt", "key", "k", "data", "CARD=4111")}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Execute(context.Background(), &Request{Arguments: schema.NewArguments(
		"operation", "encrypt", "key", "k", "data", "other")}); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Errorf("slept = %v, want one 3s delay", slept)
	}
}

func TestCryptoProvider_Rejects(t *testing.T) {
	p := &CryptoProvider{Executor: &recordingExecutor{}}
	if _, err := p.Execute(context.Background(), &Request{}); err == nil {
		t.Error("expected error without helper path")
	}
	p.Path = "cipher"
	if _, err := p.Execute(context.Background(), &Request{Arguments: schema.NewArguments("operation", "sign")}); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestCryptoProvider_ArgumentOrder(t *testing.T) {
	rec := &recordingExecutor{result: &CommandResult{Stdout: []byte("QUJD\n")}}
	p := &CryptoProvider{Path: "/bin/cipher", Executor: rec}
	res, err := p.Execute(context.Background(), &Request{Arguments: schema.NewArguments(
		"data", "ABC", "key", "secret", "operation", "ENCRYPT")})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.args) != 3 || rec.args[0] != "encrypt" || rec.args[1] != "secret" || rec.args[2] != "ABC" {
		t.Errorf("args = %q", rec.args)
	}
	if res.Response.Parsed["result"] != "QUJD" {
		t.Errorf("result = %q", res.Response.Parsed["result"])
	}
}
