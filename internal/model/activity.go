package model

import "time"

// ActivityCategory はActivityEventの種別を表す。
type ActivityCategory string

const (
	// CategoryLoveSketch はラブスケッチ画像生成を表す。日次上限の対象。
	CategoryLoveSketch ActivityCategory = "love_sketch"

	CategoryTarotReading       ActivityCategory = "tarot_reading"
	CategoryHoroscopeView      ActivityCategory = "horoscope_view"
	CategoryOracleChat         ActivityCategory = "oracle_chat"
	CategoryJournalEntry       ActivityCategory = "journal_entry"
	CategoryCompatibilityCheck ActivityCategory = "compatibility_check"
)

// knownCategories は受け付けるカテゴリの一覧。
var knownCategories = map[ActivityCategory]bool{
	CategoryLoveSketch:         true,
	CategoryTarotReading:       true,
	CategoryHoroscopeView:      true,
	CategoryOracleChat:         true,
	CategoryJournalEntry:       true,
	CategoryCompatibilityCheck: true,
}

// ParseActivityCategory は文字列をActivityCategoryに変換する。
// 未知のカテゴリの場合はfalseを返す。
func ParseActivityCategory(s string) (ActivityCategory, bool) {
	c := ActivityCategory(s)
	return c, knownCategories[c]
}

// ActivityEvent はユーザーの行動1件を表す。書き込み後は変更しない（追記専用）。
// OccurredAtがクォータ集計ウィンドウの判定基準となる。
type ActivityEvent struct {
	ID         string
	UserID     string
	Category   ActivityCategory
	Points     int
	OccurredAt time.Time
}
