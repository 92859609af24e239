package domain

// KeyPrefix namespaces all chatdex keys in the vector store.
const KeyPrefix = "chatdex:"
