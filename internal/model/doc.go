// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain types shared by the client packages.
//
// # Key Types
//
//   - Turn: one message (user or assistant) in a conversation
//   - Role: turn role enumeration (user, assistant)
//   - Image: an image selected for upload or attached to a turn
//   - Prediction: the classifier result returned by the backend
//
// # Usage
//
//	turn := model.NewUserTurn("What does prob_sick mean?")
//	turn = turn.WithImage(img)
//
// Prediction carries the exact wire field names of the backend so that a
// classification result can be stored and sent back as chat context without
// any transformation.
package model
