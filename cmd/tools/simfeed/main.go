package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

// simfeed is a loopback Level2 gateway for local runs: it accepts the JSON
// line protocol, acks logins and subscriptions, and emits synthetic traffic
// with strictly increasing per-security sequence numbers.

type frame struct {
	Type       string          `json:"type"`
	UserID     string          `json:"user_id,omitempty"`
	Password   string          `json:"password,omitempty"`
	OK         bool            `json:"ok,omitempty"`
	Message    string          `json:"message,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Exchange   string          `json:"exchange,omitempty"`
	Securities []string        `json:"securities,omitempty"`
	SecurityID string          `json:"security_id,omitempty"`
	Seq        int64           `json:"seq,omitempty"`
	TsNano     int64           `json:"ts,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type subKey struct {
	kind     string
	exchange string
	security string
}

func main() {
	listen := flag.String("listen", "127.0.0.1:6900", "Listen address")
	rate := flag.Int("rate", 10, "Events per second per subscription")
	user := flag.String("user", "", "Expected user id (empty accepts any)")
	password := flag.String("password", "", "Expected password")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		logs.Errorf("simfeed listen: %v", err)
		os.Exit(1)
	}
	defer ln.Close()
	logs.Infof("simfeed listening on %s", *listen)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			break
		}
		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			serve(ctx, c, *rate, *user, *password)
		}(conn)
	}
	wg.Wait()
}

func serve(ctx context.Context, conn net.Conn, rate int, user, password string) {
	defer conn.Close()
	logs.Infof("session from %s", conn.RemoteAddr())

	var (
		writeMu sync.Mutex
		subMu   sync.Mutex
		subs    = make(map[subKey]int64)
	)
	write := func(f frame) {
		buf, err := sonic.ConfigFastest.Marshal(f)
		if err != nil {
			return
		}
		writeMu.Lock()
		_, _ = conn.Write(append(buf, '\n'))
		writeMu.Unlock()
	}

	emitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go emit(emitCtx, rate, &subMu, subs, write)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		var f frame
		if err := sonic.ConfigFastest.Unmarshal(scanner.Bytes(), &f); err != nil {
			continue
		}
		switch f.Type {
		case "login":
			ok := user == "" || (f.UserID == user && f.Password == password)
			msg := ""
			if !ok {
				msg = "bad credentials"
			}
			write(frame{Type: "login_ack", OK: ok, Message: msg})
		case "sub":
			for _, sec := range f.Securities {
				subMu.Lock()
				subs[subKey{kind: f.Kind, exchange: f.Exchange, security: sec}] = 0
				subMu.Unlock()
				write(frame{Type: "sub_ack", Kind: f.Kind, Exchange: f.Exchange, SecurityID: sec, OK: true})
			}
		case "unsub":
			for _, sec := range f.Securities {
				subMu.Lock()
				delete(subs, subKey{kind: f.Kind, exchange: f.Exchange, security: sec})
				subMu.Unlock()
			}
		}
	}
	logs.Infof("session from %s closed", conn.RemoteAddr())
}

func emit(ctx context.Context, rate int, subMu *sync.Mutex, subs map[subKey]int64, write func(frame)) {
	if rate <= 0 {
		rate = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		subMu.Lock()
		keys := make([]subKey, 0, len(subs))
		for k := range subs {
			subs[k]++
			keys = append(keys, k)
		}
		seqs := make([]int64, len(keys))
		for i, k := range keys {
			seqs[i] = subs[k]
		}
		subMu.Unlock()

		now := time.Now().UnixNano()
		for i, k := range keys {
			write(frame{
				Type:       "event",
				Kind:       k.kind,
				Exchange:   k.exchange,
				SecurityID: k.security,
				Seq:        seqs[i],
				TsNano:     now,
				Data:       payload(k, seqs[i]),
			})
		}
	}
}

func payload(k subKey, seq int64) json.RawMessage {
	price := fmt.Sprintf("%.2f", 10+float64(seq%500)/100)
	switch k.kind {
	case "transaction":
		return json.RawMessage(fmt.Sprintf(
			`{"security_id":%q,"price":%q,"volume":%d,"buy_no":%d,"sell_no":%d,"trade_type":"F"}`,
			k.security, price, 100+seq%900, seq*2, seq*2+1))
	case "order_detail":
		side := "B"
		if seq%2 == 0 {
			side = "S"
		}
		return json.RawMessage(fmt.Sprintf(
			`{"security_id":%q,"order_no":%d,"price":%q,"volume":%d,"side":%q,"order_type":"L"}`,
			k.security, seq, price, 100+seq%900, side))
	case "index":
		return json.RawMessage(fmt.Sprintf(
			`{"security_id":%q,"last_index":%q,"pre_index":"10.00","turnover":"100000"}`,
			k.security, price))
	case "ngts_tick":
		return json.RawMessage(fmt.Sprintf(
			`{"security_id":%q,"tick_type":"T","price":%q,"volume":%d,"buy_no":%d,"sell_no":%d}`,
			k.security, price, 100+seq%900, seq*2, seq*2+1))
	default:
		levels := strings.TrimSuffix(strings.Repeat(fmt.Sprintf(`{"price":%q,"volume":%d},`, price, 100+seq%900), 5), ",")
		return json.RawMessage(fmt.Sprintf(
			`{"security_id":%q,"last_price":%q,"volume":%d,"turnover":"100000","bids":[%s],"asks":[%s]}`,
			k.security, price, 100+seq%900, levels, levels))
	}
}
