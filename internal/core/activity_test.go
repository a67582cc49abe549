package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestActivityRoundTripKeepsPayloadType(t *testing.T) {
	payloads := []ActivityPayload{
		DataEntryActivity{Year: 2024, MonthIndex: 4, Month: "May", Summary: DataEntrySummary{TotalSaving: 7000, MembersChanged: 1},
			ChangedMembers: []MemberChange{{ID: 12, Name: "K . ஜெயலட்சுமி", Changes: "loan: 0→10000"}}},
		YearActivity{Action: ActivityYearAdd, Year: 2025},
		MemberActivity{Action: ActivityMemberRemove, MemberID: 7},
		UserActivity{Action: ActivityUserDeactivate, UID: "u1", Username: "lakshmi"},
		GroupActivity{Action: ActivityGroupUpdate, Fields: []string{"interestRate"}},
		SessionActivity{Action: ActivityLogin},
	}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, p := range payloads {
		a := NewActivity("admin", p).Sanitize(now)
		a.ID = "id-1"
		if err := a.Validate(); err != nil {
			t.Fatalf("%s: %v", p.Kind(), err)
		}
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatal(err)
		}
		var back Activity
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("%s: %v", p.Kind(), err)
		}
		if back.Kind() != p.Kind() || back.User != "admin" || !back.Timestamp.Equal(now) || back.ID != "id-1" {
			t.Errorf("%s: unexpected round trip %+v", p.Kind(), back)
		}
		if back.Detail != p.Detail() {
			t.Errorf("%s: detail %q, want %q", p.Kind(), back.Detail, p.Detail())
		}
	}
}

func TestActivityDataEntryShape(t *testing.T) {
	a := NewActivity("admin", DataEntryActivity{Year: 2024, Month: "May", Summary: DataEntrySummary{TotalSaving: 7000}})
	data, _ := json.Marshal(a.Sanitize(time.Now()))
	for _, want := range []string{`"type":"data_entry"`, `"detail":"Updated May 2024 data"`, `"summary":{`, `"totalSaving":7000`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %s in %s", want, data)
		}
	}
}

func TestActivityUnknownType(t *testing.T) {
	var a Activity
	if err := json.Unmarshal([]byte(`{"type":"teleport","user":"x"}`), &a); err == nil {
		t.Fatal("unknown type should fail to decode")
	}
	bad := Activity{Payload: MemberActivity{Action: ActivityYearAdd}}
	if err := bad.Validate(); err == nil {
		t.Fatal("member payload tagged as year_add should be rejected")
	}
	if err := (Activity{}).Validate(); err == nil {
		t.Fatal("missing payload should be rejected")
	}
}

func TestActivitySanitize(t *testing.T) {
	var changes []MemberChange
	for i := 0; i < 14; i++ {
		changes = append(changes, MemberChange{ID: i + 1})
	}
	a := Activity{User: "  ", Detail: strings.Repeat("d", 500) + "<script>x</script>", Payload: DataEntryActivity{ChangedMembers: changes}}
	got := a.Sanitize(time.Now())
	if got.User != SystemUser {
		t.Errorf("user: %q", got.User)
	}
	if n := len([]rune(got.Detail)); n != 400 {
		t.Errorf("detail length %d", n)
	}
	if p := got.Payload.(DataEntryActivity); len(p.ChangedMembers) != MaxChangedMembers {
		t.Errorf("changed members not capped: %d", len(p.ChangedMembers))
	}
	if !ActivityGroupReopen.Valid() || ActivityKind("nope").Valid() {
		t.Error("Valid mismatch")
	}
}

func TestCurrentFinancialYear(t *testing.T) {
	if got := CurrentFinancialYear(time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)); got != 2024 {
		t.Errorf("March: %d", got)
	}
	if got := CurrentFinancialYear(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)); got != 2025 {
		t.Errorf("April: %d", got)
	}
}
