package config

import "testing"

func TestAllValveTablesSortedByID(t *testing.T) {
	dp := testDP()
	tables := dp.AllValveTables()
	if len(tables) != 4 {
		t.Fatalf("len(tables) = %d, want 4", len(tables))
	}
	for i := 1; i < len(tables); i++ {
		if tables[i].ID < tables[i-1].ID {
			t.Fatalf("tables not sorted by ID: %+v", tables)
		}
	}
}

func TestInPortTables(t *testing.T) {
	dp := testDP()
	tables := dp.InPortTables()
	if len(tables) != 1 || tables[0].Name != "vlan" {
		t.Fatalf("InPortTables() = %+v, want [vlan]", tables)
	}
}

func TestWildcardTable(t *testing.T) {
	dp := testDP()
	table, ok := dp.WildcardTable()
	if !ok || table.Name != "flood" {
		t.Fatalf("WildcardTable() = %+v, %v, want flood table", table, ok)
	}
}

func TestShortestPathToRootNoStack(t *testing.T) {
	dp := testDP()
	if !dp.ShortestPathToRoot() {
		t.Error("DP with no stack should report itself as root")
	}
}

func TestShortestPathToRootStacked(t *testing.T) {
	dp := testDP()
	dp.Stack = &StackLinks{RootDPName: "sw0", PortsByPeer: map[string]uint32{"sw0": 3}}
	if dp.ShortestPathToRoot() {
		t.Error("non-root stacked DP should not report itself as root")
	}
	port, ok := dp.ShortestPathPort("sw0")
	if !ok || port != 3 {
		t.Errorf("ShortestPathPort(sw0) = %d, %v, want 3, true", port, ok)
	}
}

func TestDPToConf(t *testing.T) {
	dp := testDP()
	conf := dp.ToConf()
	if conf["dp_id"].(uint64) != 1 {
		t.Errorf("dp_id = %v, want 1", conf["dp_id"])
	}
}
