// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// SystemAuditLogTable represents the 'system.auditlog' table
type SystemAuditLogTable struct {
	Table        string
	ID           string
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Detail       string
	IPAddress    string
	UserAgent    string
	RequestID    string
	CreatedAt    string
}

// SystemAuditLog is the schema definition for system.auditlog
var SystemAuditLog = SystemAuditLogTable{
	Table:        "system.auditlog",
	ID:           "id",
	ActorID:      "actorid",
	Action:       "action",
	ResourceType: "resourcetype",
	ResourceID:   "resourceid",
	Detail:       "detail",
	IPAddress:    "ipaddress",
	UserAgent:    "useragent",
	RequestID:    "requestid",
	CreatedAt:    "createdat",
}
