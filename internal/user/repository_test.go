// AngelaMos | 2026
// repository_test.go

package user

import (
	"reflect"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestBuildUpdateOnlyPresentFields(t *testing.T) {
	query, args := buildUpdate("u-1", Fields{
		LastName: strPtr("Lovelace"),
		Role:     strPtr(RoleController),
	})

	if !strings.Contains(query, "last_name = $2") {
		t.Fatalf("expected last_name bound to $2, got:\n%s", query)
	}
	if !strings.Contains(query, "role = $3") {
		t.Fatalf("expected role bound to $3, got:\n%s", query)
	}
	if strings.Contains(query, "first_name =") || strings.Contains(query, "phone =") {
		t.Fatalf("absent fields leaked into query:\n%s", query)
	}
	if strings.Contains(query, "email =") {
		t.Fatalf("email must never be updated:\n%s", query)
	}

	want := []any{"u-1", "Lovelace", RoleController}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %#v, want %#v", args, want)
	}
}

func TestBuildUpdateKeepsWhitelistOrder(t *testing.T) {
	query, args := buildUpdate("u-2", Fields{
		Phone:     strPtr("+15551234"),
		FirstName: strPtr("Ada"),
	})

	first := strings.Index(query, "first_name = $2")
	phone := strings.Index(query, "phone = $3")
	if first < 0 || phone < 0 || first > phone {
		t.Fatalf("expected first_name before phone, got:\n%s", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
}

func TestBuildUpdateNeverInlinesValues(t *testing.T) {
	hostile := "x'; DROP TABLE users; --"
	query, args := buildUpdate("u-3", Fields{FirstName: &hostile})

	if strings.Contains(query, hostile) {
		t.Fatalf("value was interpolated into SQL:\n%s", query)
	}
	if args[1] != hostile {
		t.Fatalf("expected hostile value as bind arg, got %#v", args[1])
	}
}

func TestFieldsEmpty(t *testing.T) {
	if !(Fields{}).Empty() {
		t.Fatalf("zero Fields should be empty")
	}
	if (Fields{Phone: strPtr("")}).Empty() {
		t.Fatalf("explicit empty phone is still a present field")
	}
}
