package onebot

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 20 * time.Second
	readTimeout    = 60 * time.Second
)

// EventHandler receives one raw event frame from the gateway
type EventHandler func(raw []byte)

// Listener maintains the websocket connection to the OneBot gateway and
// feeds every inbound frame to the handler. It reconnects forever with a
// fixed delay; losing the gateway never stops the process.
type Listener struct {
	url     string
	handler EventHandler

	mu        sync.Mutex
	connected bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewListener creates a new gateway listener
func NewListener(url string, handler EventHandler) *Listener {
	return &Listener{
		url:     url,
		handler: handler,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the connect-and-read loop in the background
func (l *Listener) Start() {
	l.wg.Add(1)
	go l.loop()
	fmt.Printf("[OneBot] Listener started for %s\n", l.url)
}

// Stop shuts the listener down and waits for the loop to exit
func (l *Listener) Stop() {
	close(l.stopCh)
	l.wg.Wait()
	fmt.Println("[OneBot] Listener stopped")
}

// Connected reports whether the gateway connection is currently up
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Listener) setConnected(v bool) {
	l.mu.Lock()
	l.connected = v
	l.mu.Unlock()
}

func (l *Listener) loop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(l.url, nil)
		if err != nil {
			fmt.Printf("[OneBot] Connect failed: %v, retrying in %v\n", err, reconnectDelay)
			if !l.sleep(reconnectDelay) {
				return
			}
			continue
		}

		fmt.Println("[OneBot] Connected")
		l.setConnected(true)
		l.serve(conn)
		l.setConnected(false)
		conn.Close()

		select {
		case <-l.stopCh:
			return
		default:
			fmt.Printf("[OneBot] Connection lost, reconnecting in %v\n", reconnectDelay)
			if !l.sleep(reconnectDelay) {
				return
			}
		}
	}
}

// serve reads frames until the connection dies or the listener stops
func (l *Listener) serve(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)

	// Ping keeps the connection alive and detects a dead peer through the
	// read deadline
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			case <-l.stopCh:
				conn.Close()
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.stopCh:
			default:
				fmt.Printf("[OneBot] Read error: %v\n", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		l.handler(data)
	}
}

func (l *Listener) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-l.stopCh:
		return false
	}
}
