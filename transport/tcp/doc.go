// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp creates the raw listening socket consumed by the echo loop and
// provides the small socket helpers the loop needs (accept, address text).
package tcp
