package ollama

import (
	"fmt"
	"strings"

	"github.com/saglikai/medrag/internal/core/domain"
)

const maxHistoryTurns = 4

func buildAnswerPrompt(question string, chunks []domain.RankedChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		contextBuilder.WriteString(fmt.Sprintf("[%d]\n%s\n\n", idx+1, chunk.Chunk.Text))
	}

	return fmt.Sprintf(`Sen Türkçe tıbbi dokümanlar üzerinde çalışan bir asistansın.
Soruyu YALNIZCA aşağıdaki numaralı kaynak pasajlarına dayanarak yanıtla.
Kullandığın her bilgi için cümlenin sonuna kaynak numarasını köşeli parantezle ekle, örneğin [1] veya [2].
Pasajlarda olmayan bilgiyi uydurma. Yanıt pasajlardan çıkarılamıyorsa bunu açıkça söyle ve kaynak numarası verme.

Soru:
%s

Kaynak pasajlar:
%s`, question, contextBuilder.String())
}

func buildRewritePrompt(question string, history []domain.QueryTurn) string {
	turns := history
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}

	var historyBuilder strings.Builder
	for _, turn := range turns {
		historyBuilder.WriteString("- ")
		historyBuilder.WriteString(turn.UserText)
		historyBuilder.WriteString("\n")
	}

	return fmt.Sprintf(`Önceki sorular:
%s
Yeni soru:
%s

Yeni soruyu, önceki sorulardaki bağlamı içerecek şekilde tek başına anlaşılır bir arama sorgusuna çevir.
Yalnızca yeniden yazılmış sorguyu döndür, açıklama ekleme.`, historyBuilder.String(), question)
}
