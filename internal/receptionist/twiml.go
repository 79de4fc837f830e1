// Package receptionist decides how inbound calls are answered and renders
// the TwiML the telephony provider executes.
package receptionist

import (
	"encoding/xml"
	"fmt"
)

// Response is the root TwiML document. Only the verbs the portal emits are
// modeled.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Reject  *Reject  `xml:"Reject,omitempty"`
	Say     *Say     `xml:"Say,omitempty"`
	Dial    *Dial    `xml:"Dial,omitempty"`
	Connect *Connect `xml:"Connect,omitempty"`
	Gather  *Gather  `xml:"Gather,omitempty"`
}

type Reject struct {
	Reason string `xml:"reason,attr,omitempty"`
}

type Say struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type Dial struct {
	CallerID string `xml:"callerId,attr,omitempty"`
	Number   string `xml:"Number"`
}

type Connect struct {
	Stream Stream `xml:"Stream"`
}

type Gather struct {
	Input         string `xml:"input,attr,omitempty"`
	Action        string `xml:"action,attr,omitempty"`
	SpeechTimeout string `xml:"speechTimeout,attr,omitempty"`
	Say           *Say   `xml:"Say,omitempty"`
}

type Stream struct {
	URL string `xml:"url,attr"`
}

// Render serializes a TwiML response with the XML declaration the provider
// expects.
func Render(resp Response) ([]byte, error) {
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// RejectResponse declines the call outright.
func RejectResponse() Response {
	return Response{Reject: &Reject{Reason: "rejected"}}
}

// ForwardResponse bridges the caller to the owner's forwarding number.
func ForwardResponse(forwardNumber, callerID string) Response {
	return Response{Dial: &Dial{CallerID: callerID, Number: forwardNumber}}
}

// AgentResponse greets the caller and hands the audio to the conversational
// agent over a media stream.
func AgentResponse(greeting, streamURL string) Response {
	resp := Response{Connect: &Connect{Stream: Stream{URL: streamURL}}}
	if greeting != "" {
		resp.Say = &Say{Voice: "Polly.Joanna", Text: greeting}
	}
	return resp
}

// TurnResponse speaks a line and gathers the caller's next statement; the
// provider posts the transcription to actionURL for the following turn.
func TurnResponse(text, actionURL string) Response {
	return Response{Gather: &Gather{
		Input:         "speech",
		Action:        actionURL,
		SpeechTimeout: "auto",
		Say:           &Say{Voice: "Polly.Joanna", Text: text},
	}}
}
