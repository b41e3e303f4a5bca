package types

import (
	"reflect"
	"testing"
)

func TestShippingAddressMissingFields(t *testing.T) {
	addr := ShippingAddress{FirstName: "Ada", LastName: " ", Address: "1 Loop", City: "London"}
	got := addr.MissingFields()
	want := []string{"lastName", "postalCode", "country"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestShippingAddressNormalize(t *testing.T) {
	addr := ShippingAddress{FirstName: " Ada ", Country: "UK\n"}.Normalize()
	if addr.FirstName != "Ada" || addr.Country != "UK" {
		t.Fatalf("unexpected normalized address %+v", addr)
	}
}
