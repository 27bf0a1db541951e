// Package services holds carebot's core logic behind the driving ports.
//
// Ingestion runs documents through the chunker, the rate-limited embedding
// client and the vector store, checkpointing every chunk so a job resumes
// where it stopped. Retrieval embeds a query, filters local hits by
// relevance and escalates to web search when the library has nothing
// useful. The conversation service walks each patient through greeting,
// identification and routing, and the scheduler retries failed chunks and
// expires idle sessions in the background.
package services
