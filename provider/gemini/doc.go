// Package gemini implements the adapter for the Google Gemini API
// (generateContent / streamGenerateContent with alt=sse).
//
// The adapter owns the Gemini wire contract: x-goog-api-key auth,
// contents/parts message shapes with a separate systemInstruction block,
// functionCall/functionResponse tool plumbing (call ids are synthesized,
// Gemini has none), and the UPPER_CASE finishReason vocabulary where SAFETY
// and RECITATION normalize to a content filter.
package gemini
