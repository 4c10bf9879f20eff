package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/swrcache"
)

func TestEntryCarriesFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("preloaded cache into memory", swrcache.Fields{"requested": 8, "loaded": 5})

	e := hook.LastEntry()
	if e == nil {
		t.Fatal("no entry")
	}
	if e.Level != logrus.DebugLevel || e.Message != "preloaded cache into memory" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data["component"] != "swrcache" || e.Data["loaded"] != 5 {
		t.Fatalf("data=%v", e.Data)
	}
}
