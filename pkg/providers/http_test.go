package providers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"

	"github.com/ormasoftchile/clirun/pkg/schema"
)

type captured struct {
	body   string
	header http.Header
	path   string
}

// serveOnce accepts a single connection, records the request and answers
// with reply.
func serveOnce(t *testing.T, reply func(w io.Writer)) (string, <-chan captured) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	ch := make(chan captured, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		data, _ := io.ReadAll(req.Body)
		ch <- captured{body: string(data), header: req.Header, path: req.URL.RequestURI()}
		reply(conn)
	}()
	return "http://" + ln.Addr().String(), ch
}

func TestHTTPProvider_PostsLiteralBody(t *testing.T) {
	body, _ := korean.EUCKR.NewEncoder().String("RESULT=0000\nMSG=정상")
	base, ch := serveOnce(t, func(w io.Writer) {
		fmt.Fprintf(w, "HTTP/1.1 201 Created\r\nContent-Type: text/plain; charset=euc-kr\r\nX-Trace: abc\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	})

	p := &HTTPProvider{Timeout: 5 * time.Second}
	res, err := p.Execute(context.Background(), &Request{
		Command:   base + "/pay?x=1",
		Arguments: schema.NewArguments("amount", "1+2", "sig", "a%2Bb"),
		Headers:   map[string]string{"x-api-key": "k"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := <-ch
	if got.body != "amount=1+2&sig=a%2Bb" {
		t.Errorf("server saw body %q", got.body)
	}
	if got.path != "/pay?x=1" {
		t.Errorf("path = %q", got.path)
	}
	if got.header.Get("X-Api-Key") != "k" {
		t.Errorf("custom header missing: %v", got.header)
	}

	parsed := res.Response.Parsed
	if parsed["status"] != "201" {
		t.Errorf("status = %q", parsed["status"])
	}
	if parsed["msg"] != "정상" || parsed["result"] != "0000" {
		t.Errorf("body not decoded: %v", parsed)
	}
	if parsed["header_x-trace"] != "abc" {
		t.Errorf("header_x-trace = %q", parsed["header_x-trace"])
	}
	if !strings.HasPrefix(res.CommandString, "POST http://") {
		t.Errorf("command string = %q", res.CommandString)
	}
}

func TestHTTPProvider_ExplicitBodyWins(t *testing.T) {
	base, ch := serveOnce(t, func(w io.Writer) {
		io.WriteString(w, "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 0\r\n\r\n")
	})
	p := &HTTPProvider{Timeout: 5 * time.Second}
	res, err := p.Execute(context.Background(), &Request{
		Command:   base,
		Body:      `{"a":"+"}`,
		Arguments: schema.NewArguments("ignored", "1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := <-ch; got.body != `{"a":"+"}` {
		t.Errorf("body = %q", got.body)
	}
	if res.Response.Parsed["status"] != "500" {
		t.Errorf("an error status is still a completed step: %v", res.Response.Parsed)
	}
}

func TestHTTPProvider_SoftFailures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := &HTTPProvider{Timeout: 2 * time.Second}
	res, err := p.Execute(context.Background(), &Request{Command: "http://" + addr})
	if err != nil {
		t.Fatalf("network errors must be soft: %v", err)
	}
	if res.Response.Parsed["status"] != "0" || res.Response.Parsed["error"] == "" {
		t.Errorf("parsed = %v", res.Response.Parsed)
	}

	silent, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()
	go func() {
		conn, err := silent.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(3 * time.Second)
		}
	}()
	res, err = p.Execute(context.Background(), &Request{Command: "http://" + silent.Addr().String(), Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("timeouts must be soft: %v", err)
	}
	if res.Response.Parsed["error"] != "timed out after 200ms" {
		t.Errorf("error = %q", res.Response.Parsed["error"])
	}
}

func TestHTTPProvider_RejectsScheme(t *testing.T) {
	p := &HTTPProvider{}
	_, _, _, err := p.post(context.Background(), "ftp://x", nil, "", 0)
	if err == nil {
		t.Error("expected unsupported scheme error")
	}
}
