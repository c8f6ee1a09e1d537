package exotel

import (
	"encoding/xml"
	"net/url"
	"regexp"
	"strings"

	"ai-voice-bridge-service/internal/models"
)

const (
	streamPath   = "/ws/exotel"
	pauseSeconds = 600
	greetingText = "Connecting you to our assistant. Please stay on the line."
)

var nonPrintableASCII = regexp.MustCompile(`[^\x20-\x7E]`)

type exoResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     exoSay   `xml:"Say"`
	Start   exoStart `xml:"Start"`
	Pause   exoPause `xml:"Pause"`
}

type exoSay struct {
	Voice string `xml:"voice,attr"`
	Text  string `xml:",chardata"`
}

type exoStart struct {
	Stream exoStream `xml:"Stream"`
}

type exoStream struct {
	URL string `xml:"url,attr"`
}

type exoPause struct {
	Length int `xml:"length,attr"`
}

// StreamURL returns the bridge websocket URL for a call. The scheme follows
// publicURL: https becomes wss, anything else ws.
func StreamURL(publicURL string, sampleRate string, vars models.DynamicVariables) string {
	base := strings.TrimRight(publicURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	q := url.Values{}
	if sampleRate != "" {
		q.Set("sample-rate", sampleRate)
	}
	q.Set("agent_name", vars.AgentName)
	q.Set("customer_name", vars.CustomerName)
	q.Set("amount", vars.DueAmount)
	q.Set("due_date", nonPrintableASCII.ReplaceAllString(vars.DueDate, ""))
	return base + streamPath + "?" + q.Encode()
}

// StartVoice renders the ExoML document that greets the callee and starts
// streaming the call to streamURL.
func StartVoice(streamURL string) ([]byte, error) {
	doc := exoResponse{
		Say:   exoSay{Voice: "alice", Text: greetingText},
		Start: exoStart{Stream: exoStream{URL: streamURL}},
		Pause: exoPause{Length: pauseSeconds},
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
