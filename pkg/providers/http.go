package providers

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
)

// HTTPProvider posts the step body over a raw connection. The body bytes
// are written exactly as resolved, so characters such as '+' are never
// re-encoded.
type HTTPProvider struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Body returns what will be posted: the step body when set, otherwise the
// arguments joined as k=v&k=v.
func Body(req *Request) string {
	if req.Body != "" {
		return req.Body
	}
	return req.Arguments.Join("&", nil)
}

// Execute performs the POST. Network failures and timeouts are returned as
// a response with status 0 and parsed "error", not as an error, so the
// step stays inspectable.
func (p *HTTPProvider) Execute(ctx context.Context, req *Request) (*Result, error) {
	body := Body(req)
	res := &Result{CommandString: "POST " + req.Command}
	timeout := pick(req.Timeout, p.Timeout)
	start := time.Now()

	status, header, data, err := p.post(ctx, req.Command, req.Headers, body, timeout)
	elapsed := time.Since(start)
	if err != nil {
		msg := err.Error()
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			msg = (&TimeoutError{After: timeout}).Error()
		}
		raw := response.New(-1, "", msg, elapsed)
		raw.Parsed["status"] = "0"
		raw.Parsed["error"] = msg
		res.Response = raw
		return res, nil
	}

	text := response.DecodeCharset(data, header.Get("Content-Type"))
	raw := response.New(0, text, "", elapsed)
	raw.Parsed["status"] = strconv.Itoa(status)
	raw.Parsed["body"] = text
	for k, vs := range header {
		raw.Parsed["header_"+strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	res.Response = raw
	return res, nil
}

func (p *HTTPProvider) post(ctx context.Context, rawURL string, headers map[string]string, body string, timeout time.Duration) (int, http.Header, []byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return 0, nil, nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	addr := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, nil, nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if u.Scheme == "https" {
		tc := tls.Client(conn, &tls.Config{ServerName: u.Hostname(), InsecureSkipVerify: p.InsecureSkipVerify})
		if err := tc.HandshakeContext(ctx); err != nil {
			return 0, nil, nil, err
		}
		conn = tc
	}

	if _, err := io.WriteString(conn, requestHead(u, headers, len(body))+body); err != nil {
		return 0, nil, nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, data, nil
}

func requestHead(u *url.URL, headers map[string]string, length int) string {
	path := u.RequestURI()
	if path == "" {
		path = "/"
	}
	set := map[string]string{
		"Host":           u.Host,
		"Content-Type":   "application/x-www-form-urlencoded",
		"Content-Length": strconv.Itoa(length),
		"Connection":     "close",
	}
	for k, v := range headers {
		set[http.CanonicalHeaderKey(k)] = v
	}
	set["Content-Length"] = strconv.Itoa(length)

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", path)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, set[k])
	}
	b.WriteString("\r\n")
	return b.String()
}
