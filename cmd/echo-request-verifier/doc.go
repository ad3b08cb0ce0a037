// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// echo-request-verifier authenticates webhook requests sent by the voice
// assistant platform and maintains the cache of signing certificates.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/echo-request-verifier/cmd/echo-request-verifier@latest
//
// # Usage
//
//	echo-request-verifier [--config FILE] serve
//	echo-request-verifier [--config FILE] cache list
//	echo-request-verifier [--config FILE] cache prune
//	echo-request-verifier [--config FILE] cache fetch URL
//
// # Configuration
//
// The configuration file is JSON or YAML, chosen by extension. Without
// --config, ECHO_VERIFIER_CONFIG_FILE is consulted. ECHO_VERIFIER_APPLICATION_ID
// overrides validation.applicationId.
//
//	validation:
//	  applicationId: amzn1.ask.skill.00000000-0000-0000-0000-000000000000
//	  maxRequestAgeSeconds: 60
//	cache:
//	  directory: /var/cache/echo-request-verifier
//	server:
//	  address: ":8443"
//	  tlsCertFile: /etc/echo/tls.crt
//	  tlsKeyFile: /etc/echo/tls.key
//	log:
//	  errorLog: /var/log/echo-request-verifier/validation.log
//
// # Examples
//
// Warm the cache before the first request arrives:
//
//	echo-request-verifier -c config.yaml cache fetch https://s3.amazonaws.com/echo.api/echo-api-cert-12.pem
//
// Drop certificates that have expired:
//
//	echo-request-verifier -c config.yaml cache prune
package main
