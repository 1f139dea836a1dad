package device

import (
	"sort"
	"testing"
)

func TestDriverInfoListSorting(t *testing.T) {
	defer func() {
		registeredDrivers = nil
	}()

	origList := []*DriverInfo{
		{Order: DetectOrderDevices},
		{Order: DetectOrderLast},
		{Order: DetectOrderTTY},
		{Order: DetectOrderEarly},
	}

	for _, drv := range origList {
		RegisterDriver(drv)
	}

	registeredList := DriverList()
	if exp, got := len(origList), len(registeredList); got != exp {
		t.Fatalf("expected DriverList() to return %d entries; got %d", exp, got)
	}

	sort.Sort(registeredList)
	expOrder := []int{3, 2, 0, 1}
	for i, exp := range expOrder {
		if registeredList[i] != origList[exp] {
			t.Errorf("expected sorted entry %d to be %v; got %v", i, origList[exp], registeredList[i])
		}
	}
}
