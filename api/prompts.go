package api

import (
	"fmt"
	"strings"
)

func chatSystemPrompt(schema, dbtContext string) string {
	return "You are a senior Data Engineering assistant.\n" +
		"Hard rules:\n" +
		"- Stay strictly in Data Engineering scope\n" +
		"- Use ONLY the provided context if present\n" +
		"- If writing SQL, use the SCHEMA below.\n" +
		"- If asked about lineage or transformations, use the DBT CONTEXT below.\n\n" +
		fmt.Sprintf("=== SQL SCHEMA ===\n%s\n\n", schema) +
		fmt.Sprintf("=== DBT PROJECT STRUCTURE ===\n%s\n\n", dbtContext) +
		"- Format: 1) Short answer 2) Steps 3) Code 4) Check command"
}

func chatUserPrompt(message, knowledge string) string {
	return fmt.Sprintf("User question:\n%s\n\nContext (RAG):\n%s\n", message, knowledge)
}

func fixSystemPrompt(schema string) string {
	return "You are a SQL Debugging Expert.\n" +
		"Your task: Fix the broken SQL query based on the error message and the schema.\n" +
		"Rules:\n" +
		"- Output ONLY the corrected SQL query.\n" +
		"- Do NOT output markdown, explanations, or backticks.\n" +
		fmt.Sprintf("Database Schema:\n%s", schema)
}

func fixUserPrompt(query, errMsg string) string {
	return fmt.Sprintf("Broken Query:\n%s\n\nError Message:\n%s\n\nCorrected SQL:", query, errMsg)
}

// stripFences removes Markdown code fences the model adds despite being told not to.
func stripFences(sql string) string {
	sql = strings.ReplaceAll(sql, "```sql", "")
	sql = strings.ReplaceAll(sql, "```", "")
	return strings.TrimSpace(sql)
}
