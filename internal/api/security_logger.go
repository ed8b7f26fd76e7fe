package api

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// SecurityLogger writes audit and security events. Customer identifiers
// and receipts are hashed before they reach the log.
type SecurityLogger struct {
	logger logrus.FieldLogger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger logrus.FieldLogger) *SecurityLogger {
	return &SecurityLogger{logger: logger.WithField("stream", "security")}
}

// LogSecurityEvent logs a security-relevant event such as a rejected
// receipt or a failed validation.
func (sl *SecurityLogger) LogSecurityEvent(requestID, eventType, description string, details map[string]interface{}, remoteAddr string) {
	sl.logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"event":       eventType,
		"remote_addr": remoteAddr,
		"details":     sl.sanitize(details),
	}).Warn(description)
}

// LogAuditEvent logs a completed operation.
func (sl *SecurityLogger) LogAuditEvent(requestID, action, resource, outcome string, details map[string]interface{}) {
	sl.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"action":     action,
		"resource":   resource,
		"outcome":    outcome,
		"details":    sl.sanitize(details),
	}).Info("audit_event")
}

// LogSystemStartup logs the server's startup configuration.
func (sl *SecurityLogger) LogSystemStartup(details map[string]interface{}) {
	sl.logger.WithFields(logrus.Fields{
		"version": ServerVersion,
		"commit":  GitCommit,
		"details": sl.sanitize(details),
	}).Info("system_startup")
}

var sensitiveKeys = map[string]bool{
	"customer_id": true,
	"customerId":  true,
	"receipt":     true,
	"email":       true,
	"phone":       true,
	"api_key":     true,
}

// sanitize replaces sensitive values with their hashes.
func (sl *SecurityLogger) sanitize(details map[string]interface{}) map[string]interface{} {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(details))
	for k, v := range details {
		if s, ok := v.(string); ok && sensitiveKeys[k] {
			out[k] = hashValue(s)
			continue
		}
		out[k] = v
	}
	return out
}

// hashValue creates a short SHA256 hash of a value for logging purposes
func hashValue(v string) string {
	if v == "" {
		return "empty"
	}
	hash := sha256.Sum256([]byte(v))
	return hex.EncodeToString(hash[:])[:16]
}
