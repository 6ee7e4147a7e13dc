package codec

import (
	"testing"

	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type sample struct {
	ChallengeID string `json:"challenge_id"`
	Count       int    `json:"count"`
}

func TestJSON_Registered(t *testing.T) {
	if c := encoding.GetCodec(Name); c == nil {
		t.Fatalf("codec %q not registered", Name)
	}
}

func TestJSON_Struct(t *testing.T) {
	var c JSON
	data, err := c.Marshal(&sample{ChallengeID: "abc", Count: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"challenge_id":"abc","count":2}` {
		t.Errorf("Marshal = %s", data)
	}
	var got sample
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ChallengeID != "abc" || got.Count != 2 {
		t.Errorf("Unmarshal = %+v", got)
	}
}

func TestJSON_ProtoMessage(t *testing.T) {
	var c JSON
	in := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out healthpb.HealthCheckResponse
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Status = %v, want SERVING", out.GetStatus())
	}
}

func TestJSON_EmptyPayload(t *testing.T) {
	var got sample
	if err := (JSON{}).Unmarshal(nil, &got); err != nil {
		t.Fatalf("Unmarshal(nil): %v", err)
	}
	if got != (sample{}) {
		t.Errorf("Unmarshal(nil) = %+v, want zero", got)
	}
}
