package schema

import "marketstore/models"

// ForceOptionColumns guarantees every derivative-only field exists on
// the table, filling absent columns and nil cells with the given
// neutral value. Option rows always carry the full option field set
// even when some greeks were never quoted, keeping the canonical
// schema fixed-width.
func ForceOptionColumns(t *models.Table, fill float64) {
	for _, name := range optionColumns {
		if !t.HasColumn(name) {
			t.SetConst(name, fill)
			continue
		}
		for i := 0; i < t.Len(); i++ {
			if t.Value(i, name) == nil {
				t.Set(i, name, fill)
			}
		}
	}
}
