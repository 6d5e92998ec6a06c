// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package content exposes the privileged operations on owned content.

Blog posts, projects and media all carry an author and a publication status.
The routes here delete them or change their status, behind the authorization
gateway, CSRF protection and the audit log.
*/
package content

import (
	"github.com/taibuivan/studio/internal/platform/database/schema"
	"github.com/taibuivan/studio/internal/platform/sec"
)

// # Resources

// Resource names a content type. It is also the permission namespace.
type Resource string

const (
	ResourceBlog     Resource = "blog"
	ResourceProjects Resource = "projects"
	ResourceMedia    Resource = "media"
)

// Actions used in permission names.
const (
	ActionDelete  = "delete"
	ActionUpdate  = "update"
	ActionPublish = "publish"
)

// Publication states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var tables = map[Resource]schema.ContentTable{
	ResourceBlog:     schema.ContentPost,
	ResourceProjects: schema.ContentProject,
	ResourceMedia:    schema.ContentMedia,
}

// ParseResource resolves a path segment into a known resource.
func ParseResource(value string) (Resource, bool) {
	resource := Resource(value)
	_, ok := tables[resource]
	return resource, ok
}

// Permission returns the permission guarding action on the resource.
func (r Resource) Permission(action string) sec.Permission {
	return sec.Permission(string(r) + ":" + action)
}

// Publishable reports whether publishing needs its own permission.
// Media has no publish permission and is published by anyone who may update it.
func (r Resource) Publishable() bool {
	return r != ResourceMedia
}

func (r Resource) table() schema.ContentTable {
	return tables[r]
}
