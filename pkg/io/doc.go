// Package io implements the record-oriented data-transfer runtime: external
// file units addressed by number, internal units overlaying caller-owned
// character buffers, and the numeric edit codec that moves values between
// their textual and binary forms. Statements drive a unit through a
// per-statement state bound to it, and report their outcome through an
// IoErrorHandler as a condition code (success, recoverable condition, or
// fatal abort).
package io
