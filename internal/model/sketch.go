package model

import "time"

// LoveSketch は生成に成功したラブスケッチの成果物を表す。
type LoveSketch struct {
	ID             string
	UserID         string
	ImageDataURI   string
	Interpretation string
	Style          string
	CreatedAt      time.Time
}
