// Package zfits reads and writes telescope camera event tables stored as
// serialized protobuf rows inside table containers.
//
// # Architecture
//
// Rows flow through four layers:
//
// 1. Arrays and schemas: pkg/anyarray converts the self-describing numeric
// array messages to typed arrays and back; pkg/catalog and pkg/schema
// resolve the closed set of message types into field schemas with enum
// tables.
//
// 2. Records: pkg/record decodes a row into a generic Record (scalars,
// enum labels, arrays and nested records) and encodes it back.
//
// 3. Tables: pkg/table exposes the binary tables of a container with
// sequential and random access; pkg/merge merges several tables by
// sequence key; pkg/writer appends records to a table whose message type
// is locked by the first row.
//
// 4. Containers: pkg/container defines the reader and sink contracts,
// implemented in memory (pkg/container/memory) and as compressed files
// (pkg/container/zfile).
//
// pkg/trigger and pkg/digicam decode the DigiCam trigger patch arrays and
// pixel data, pkg/export writes records as JSON lines or Avro.
//
// # Quick Start
//
// Merge the event tables of two containers:
//
//	driver := zfile.NewDriver(nil, logger)
//	p := pipeline.New(driver, nil, pipeline.DefaultOptions(), logger)
//	stats, err := p.Merge(ctx, []string{"run1.zfits", "run2.zfits"}, "merged.zfits")
//
// Or from the command line:
//
//	zfits merge run1.zfits run2.zfits --out merged.zfits
//	zfits dump merged.zfits --format json
//
// # Configuration
//
// The CLI reads YAML configuration (see pkg/config) with ZFITS_* environment
// overrides and a .env file in the working directory.
package zfits
