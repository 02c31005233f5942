// Package config provides configuration discovery and parsing for stackctl.
//
// Two kinds of configuration exist: the tool-level GlobalConfig and the
// per-stack definition made of one stack file plus any number of
// application files.
//
// # Tool Configuration Layers
//
// Tool configuration is loaded and merged in the following order:
//
//  1. Default Configuration (embedded in binary)
//     - Provides sensible defaults for all settings
//     - Ensures stackctl works out-of-the-box
//
//  2. User Configuration (~/.config/stackctl/config.yaml)
//     - User-specific settings that apply to all stacks
//     - Engine choice, proxy domain, cache location, account API
//
// # Stack Definition
//
// A stack is rooted at the directory containing stackctl.yaml (or
// .stackctl.yaml). Discover finds it by walking up from the starting
// directory, then walks down from the stack root collecting every
// .stackctl.app.yaml in lexical order. Hidden directories, node_modules,
// vendor, and the .stackctl work directory are never descended into.
//
// A stack file looks like:
//
//	name: mysite
//	engine: docker
//	domain: stackctl.site
//	services:
//	  - name: db
//	    type: "mysql:10"
//	    relationships:
//	      database:
//	        host: db.internal
//	        port: 3306
//	        username: app
//	        password: secret
//	  - name: cache
//	    type: "redis:7"
//	    relationships:
//	      redis:
//	        port: 6379
//	routes:
//	  "https://{default}/":
//	    type: upstream
//	    upstream: "web:http"
//
// The order of the services list is declaration order: when two services
// declare the same relationship name, the one listed first provides it.
//
// An application file looks like:
//
//	name: web
//	type: "php:8.3"
//	relationships:
//	  - database
//	  - redis
//
// # Normalization
//
// This package only reads and parses files. Validation and conversion
// into the runtime model (supported-service catalog, relationship
// binding, closest-application lookup) live in the stack package.
package config
