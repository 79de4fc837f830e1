package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendSMS(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued","to":"+15550001111","from":"+15559990000","body":"hello"}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		AccountSID: "AC1",
		AuthToken:  "secret",
		FromNumber: "+15559990000",
		BaseURL:    server.URL,
	})

	msg, err := client.SendSMS(context.Background(), "+15550001111", "hello")
	if err != nil {
		t.Fatalf("SendSMS failed: %v", err)
	}

	if msg.SID != "SM123" {
		t.Errorf("expected SID SM123, got %s", msg.SID)
	}
	if gotPath != "/2010-04-01/Accounts/AC1/Messages.json" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotUser != "AC1" || gotPass != "secret" {
		t.Errorf("unexpected basic auth %s:%s", gotUser, gotPass)
	}
	if gotTo != "+15550001111" || gotFrom != "+15559990000" || gotBody != "hello" {
		t.Errorf("unexpected form values to=%s from=%s body=%s", gotTo, gotFrom, gotBody)
	}
}

func TestSendSMSAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		AccountSID: "AC1",
		AuthToken:  "secret",
		FromNumber: "+15559990000",
		BaseURL:    server.URL,
	})

	_, err := client.SendSMS(context.Background(), "bogus", "hello")
	if err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestSendSMSNotConfigured(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.SendSMS(context.Background(), "+15550001111", "hello")
	if err != ErrNotConfigured {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGetCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Calls/CA42.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"sid":"CA42","status":"completed","duration":"95"}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		AccountSID: "AC1",
		AuthToken:  "secret",
		FromNumber: "+15559990000",
		BaseURL:    server.URL,
	})

	call, err := client.GetCall(context.Background(), "CA42")
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if call.Status != "completed" || call.Duration != "95" {
		t.Errorf("unexpected call %+v", call)
	}
}
