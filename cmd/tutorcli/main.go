package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cs15tutor/tutor/internal/chat"
)

// tutorcli is a terminal stand-in for the editor extension: it walks the
// same login handshake and reads the same event stream.

type loginIssue struct {
	SessionID string `json:"session_id"`
	LoginURL  string `json:"login_url"`
}

type loginStatus struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	UTLN   string `json:"utln"`
}

func login(client *http.Client, baseURL string) (string, error) {
	resp, err := client.Get(baseURL + "/vscode-auth")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var issued loginIssue
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return "", err
	}
	if issued.SessionID == "" {
		return "", fmt.Errorf("server did not issue a login session")
	}

	fmt.Printf("Open this URL in your browser to log in:\n  %s\n", issued.LoginURL)
	fmt.Println("Waiting for authentication...")

	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Second)

		resp, err := client.Get(baseURL + "/vscode-auth-status?session_id=" + issued.SessionID)
		if err != nil {
			continue
		}
		var st loginStatus
		err = json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()
		if err != nil {
			continue
		}

		switch st.Status {
		case "completed":
			fmt.Printf("Logged in as %s.\n", st.UTLN)
			return st.Token, nil
		case "error", "not_found":
			return "", fmt.Errorf("login %s", st.Status)
		}
	}
	return "", fmt.Errorf("login timed out")
}

func ask(client *http.Client, baseURL, token, conversationID, message string) error {
	body, err := json.Marshal(map[string]string{
		"message":        message,
		"conversationId": conversationID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev chat.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("bad stream record: %w", err)
		}

		switch ev.Status {
		case chat.StatusLoading, chat.StatusThinking:
			fmt.Printf("  [%s] %s\n", ev.Status, ev.Message)
		case chat.StatusComplete:
			fmt.Printf("\n%s\n\n", ev.Response)
			return nil
		case chat.StatusError:
			return fmt.Errorf("%s", ev.Error)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream ended without a terminal event")
}

func main() {
	baseURL := flag.String("server", "http://127.0.0.1:5000", "tutor api base URL")
	token := flag.String("token", "", "bearer token (skips the login handshake)")
	flag.Parse()

	client := &http.Client{Timeout: 2 * time.Minute}

	tok := *token
	if tok == "" {
		var err error
		tok, err = login(client, *baseURL)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
	}

	// The client owns the conversation id; the server treats it as opaque.
	conversationID := uuid.NewString()

	fmt.Println("Ask a question (ctrl-d to quit):")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			fmt.Println()
			return
		}
		msg := strings.TrimSpace(in.Text())
		if msg == "" {
			continue
		}
		if err := ask(client, *baseURL, tok, conversationID, msg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
