package vecsync

import (
	"strings"
	"testing"

	"github.com/viant/myvector/collection"
)

func TestTriggers(t *testing.T) {
	name := collection.Name{Schema: "main", Table: "docs", Column: "embedding"}
	trigs, err := Triggers(name, "id", Direct, "")
	if err != nil {
		t.Fatalf("Triggers failed: %v", err)
	}
	if len(trigs) != 3 {
		t.Fatalf("expected 3 triggers, got %d", len(trigs))
	}
	if !strings.Contains(trigs[0], "CREATE TRIGGER IF NOT EXISTS main.myvector_docs_embedding_ai AFTER INSERT ON docs") {
		t.Fatalf("unexpected insert trigger: %s", trigs[0])
	}
	if !strings.Contains(trigs[0], "myvector_index_insert('main.docs.embedding', NEW.id, NEW.embedding)") {
		t.Fatalf("insert trigger missing index call: %s", trigs[0])
	}
	if !strings.Contains(trigs[1], "AFTER UPDATE OF id, embedding ON docs") {
		t.Fatalf("unexpected update trigger: %s", trigs[1])
	}
	if !strings.Contains(trigs[2], "myvector_index_remove('main.docs.embedding', OLD.id)") {
		t.Fatalf("delete trigger missing OLD reference: %s", trigs[2])
	}

	trigs, err = Triggers(name, "id", Logged, "")
	if err != nil {
		t.Fatalf("Triggers(Logged) failed: %v", err)
	}
	if !strings.Contains(trigs[0], "INSERT INTO myvector_log(index_name, op, row_id) VALUES ('main.docs.embedding', 'insert', NEW.id)") {
		t.Fatalf("unexpected logged insert trigger: %s", trigs[0])
	}
	if !strings.Contains(trigs[2], "'delete', OLD.id") {
		t.Fatalf("unexpected logged delete trigger: %s", trigs[2])
	}

	if _, err := Triggers(name, "id;drop", Direct, ""); err == nil {
		t.Fatalf("expected invalid id column to fail")
	}
	if _, err := Triggers(name, "id", Mode(7), ""); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}

func TestDropTriggers(t *testing.T) {
	stmts := DropTriggers(collection.Name{Schema: "aux", Table: "docs", Column: "vec"})
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if stmts[1] != "DROP TRIGGER IF EXISTS aux.myvector_docs_vec_au;" {
		t.Fatalf("unexpected drop statement: %s", stmts[1])
	}
}

func TestDDL(t *testing.T) {
	if !strings.Contains(LogTableDDL(""), "CREATE TABLE IF NOT EXISTS myvector_log") {
		t.Fatalf("unexpected log DDL: %s", LogTableDDL(""))
	}
	if !strings.Contains(StateTableDDL("aux.state"), "CREATE TABLE IF NOT EXISTS aux.state") {
		t.Fatalf("unexpected state DDL: %s", StateTableDDL("aux.state"))
	}
}
