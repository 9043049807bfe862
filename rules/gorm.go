//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// GormSave flags (*gorm.DB).Save. Save writes every column, so it zeroes
// CreatedAt on an upsert and bypasses the version column on baseline rows.
func GormSave(m dsl.Matcher) {
	m.Match(`$db.Save($_)`).
		Where(m["db"].Type.Is("*gorm.DB")).
		Report("use an explicit OnConflict upsert or a versioned Updates instead of Save")
}

// GormFormattedSQL flags SQL text assembled with fmt.Sprintf.
func GormFormattedSQL(m dsl.Matcher) {
	m.Match(
		`$db.Where(fmt.Sprintf($*_), $*_)`,
		`$db.Raw(fmt.Sprintf($*_), $*_)`,
		`$db.Exec(fmt.Sprintf($*_), $*_)`,
		`$db.Order(fmt.Sprintf($*_))`,
	).
		Where(m["db"].Type.Is("*gorm.DB")).
		Report("pass values as query arguments instead of formatting them into SQL")
}

// WaitGroupGo flags the Add/Done goroutine pattern that wg.Go replaces.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body })").
		Suggest("$wg.Go(func() { $body })")
}
