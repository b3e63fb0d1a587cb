// Package pkg provides the libraries behind ovalmerge, which combines OVAL
// vulnerability-definition documents into one.
//
// # Overview
//
// Feeds from different vendors often describe the same package. ovalmerge
// takes documents in increasing priority and keeps, per package, the
// definition from the last document that has one, together with exactly
// the tests, objects, states and variables it references.
//
// # Architecture
//
//	files / URLs
//	     ↓
//	[regen]      rewrite every "oval:" id with a unique numeric suffix
//	     ↓
//	[xmldoc]     parse, index ids, collect namespace bindings
//	     ↓
//	[resolve]    reference closure of each definition
//	     ↓
//	[merge]      package table, output assembly, validation
//	     ↓
//	[xmldoc]     serialize
//
// [pipeline] runs these stages with caching ([cache]) and instrumentation
// ([observability]). The CLI and the HTTP service ([server]) both go
// through a [pipeline.Runner].
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	inputs, err := pipeline.LoadFiles([]string{"base.xml", "vendor.xml"})
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Merge(ctx, inputs, pipeline.Options{})
//	if err != nil {
//	    return err // errors.GetCode(err) tells parse, dangling and structural failures apart
//	}
//	os.Stdout.Write(result.Output)
//
// # Packages
//
// [oval] - element categories and the reference-attribute table.
//
// [regen] - id regeneration: sequential table build, parallel rewrite.
//
// [xmldoc] - document model on top of etree, namespace registry, writer.
//
// [resolve] - transitive closure over *_ref attributes.
//
// [merge] - priority merge, assembly, duplicate-id validation and reports.
//
// [refgraph] - reference graph of a merged document as DOT or SVG.
//
// [pipeline] - end-to-end runs with caching.
//
// [cache] - file, Redis and null caches for merged results.
//
// [httputil] - download of remote feeds with retry and revalidation.
//
// [config] - TOML/YAML configuration.
//
// [server] - HTTP merge service.
//
// [errors] - error codes and exit-status mapping.
//
// [observability] - hooks for metrics and tracing.
//
// [buildinfo] - version information.
package pkg
