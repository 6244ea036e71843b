// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the cardiac MRI backend.
//
// The backend exposes three endpoints:
//
//   - POST /classify: multipart upload of one image, returns a Prediction
//   - POST /chat: JSON conversation turn, returns the assistant reply
//   - GET /health: model and device information
//
// # Error Handling
//
// Classification failures are *ClassificationError, chat failures are
// *ChatError, and a chat call that exceeds the client timeout is
// *ChatTimeoutError (errors.Is(err, ErrChatTimeout)). None are retried.
// UserMessage converts any of them into text suitable for display.
//
// # Usage
//
//	client := api.NewClient("http://localhost:7860")
//	res, err := client.Classify(ctx, img)
//	if err != nil {
//	    return api.UserMessage(err)
//	}
//	reply, err := client.Chat(ctx, api.ChatRequest{
//	    Message:    "What does this mean?",
//	    Provider:   api.ProviderGroq,
//	    Prediction: &res.Prediction,
//	})
package api
