package domain

import "time"

// ParsedFeed is the normalized in-memory representation of a fetched feed document
type ParsedFeed struct {
	Title        string
	Link         string // site link, not the feed URL
	ETag         string // validators returned by the origin, empty if absent
	LastModified string
	NotModified  bool // origin answered 304, Items is empty
	Items        []ParsedItem
}

// ParsedItem is one normalized item from a feed document
type ParsedItem struct {
	Title     string
	Link      string
	Author    string
	Summary   string
	Content   string
	Published time.Time
	Enclosure *ParsedEnclosure
}

// ParsedEnclosure is a media attachment declared by a feed item
type ParsedEnclosure struct {
	URL      string
	MimeType string
	Size     int64
}
