// Package dedupe guards against duplicate inbound channel deliveries.
package dedupe
