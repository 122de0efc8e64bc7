package notify_test

import (
	"context"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/sabores-reservas/internal/notify"
)

func listen(t *testing.T) (net.Listener, notify.SMTPConfig) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return ln, notify.SMTPConfig{Host: host, Port: p, From: "reservas@example.com"}
}

func TestSMTPSendHonoursContext(t *testing.T) {
	ln, cfg := listen(t)

	// accept and never greet
	closed := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			closed <- err
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, err = conn.Read(make([]byte, 1))
		closed <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := notify.NewSMTPSender(cfg).Send(ctx, notify.Message{To: "ana@example.com", Subject: "Hola", HTML: "<p>x</p>"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, io.EOF, "client connection should be closed once Send returns")
	case <-time.After(3 * time.Second):
		t.Fatal("connection left open after Send returned")
	}
}

func TestSMTPSendDelivers(t *testing.T) {
	ln, cfg := listen(t)

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")

		var data []string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 HELP")
			case strings.HasPrefix(cmd, "MAIL FROM:"), strings.HasPrefix(cmd, "RCPT TO:"):
				data = append(data, line)
				_ = tp.PrintfLine("250 OK")
			case cmd == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				data = append(data, body...)
				_ = tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				_ = tp.PrintfLine("221 bye")
				got <- strings.Join(data, "\n")
				return
			default:
				_ = tp.PrintfLine("502 unknown")
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := notify.NewSMTPSender(cfg).Send(ctx, notify.Message{To: "ana@example.com", Subject: "Reserva", HTML: "<p>hola</p>"})
	require.NoError(t, err)

	select {
	case transcript := <-got:
		assert.Contains(t, transcript, "MAIL FROM:<reservas@example.com>")
		assert.Contains(t, transcript, "RCPT TO:<ana@example.com>")
		assert.Contains(t, transcript, "Subject: Reserva")
		assert.Contains(t, transcript, "<p>hola</p>")
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw QUIT")
	}
}
