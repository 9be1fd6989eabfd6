package catalog

import "testing"

func pingPong(data ChannelData, params ...Param) (interface{}, error) {
	return "ping", nil
}

// Invariant 6: the set of names from List() equals the registered set.
func TestListMatchesRegistered(t *testing.T) {
	c := New()
	c.Register("test", "toy metric", pingPong)
	c.Register("mean", "channel mean", pingPong)

	names := c.Names()
	if len(names) != 2 || names[0] != "mean" || names[1] != "test" {
		t.Fatalf("unexpected names: %v", names)
	}

	list := c.List()
	if list["test"] != "toy metric" || list["mean"] != "channel mean" {
		t.Fatalf("unexpected descriptions: %v", list)
	}
}

func TestInvokeRecoversArgumentMismatch(t *testing.T) {
	boom := func(data ChannelData, params ...Param) (interface{}, error) {
		panic("needs at least 1 parameter")
	}
	_, err := Invoke(boom, ChannelData{})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}

func TestGetUnknown(t *testing.T) {
	c := New()
	if _, ok := c.Get("nope"); ok {
		t.Fatal("expected unknown metric to be absent")
	}
}
