// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ContentTable describes one of the owned content tables.
// Blog posts, projects and media share the ownership and status columns.
type ContentTable struct {
	Table     string
	ID        string
	AuthorID  string
	Status    string
	UpdatedAt string
	DeletedAt string
}

func contentTable(name string) ContentTable {
	return ContentTable{
		Table:     name,
		ID:        "id",
		AuthorID:  "authorid",
		Status:    "status",
		UpdatedAt: "updatedat",
		DeletedAt: "deletedat",
	}
}

var (
	// ContentPost is the schema definition for content.post
	ContentPost = contentTable("content.post")

	// ContentProject is the schema definition for content.project
	ContentProject = contentTable("content.project")

	// ContentMedia is the schema definition for content.media
	ContentMedia = contentTable("content.media")
)
